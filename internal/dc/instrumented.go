package dc

import (
	"context"
	"time"

	"github.com/italolelis/torrent_feeder/internal/logctx"
	"github.com/italolelis/torrent_feeder/internal/telemetry"
)

// InstrumentedDialer wraps a Dialer with a span and a log line per connect.
type InstrumentedDialer struct {
	dialer    Dialer
	telemetry *telemetry.Telemetry
}

func NewInstrumentedDialer(dialer Dialer, tel *telemetry.Telemetry) *InstrumentedDialer {
	return &InstrumentedDialer{dialer: dialer, telemetry: tel}
}

func (d *InstrumentedDialer) Dial(ctx context.Context, info ConnectionInfo) (Session, error) {
	logger := logctx.LoggerFromContext(ctx).With("host", info.Host, "port", info.Port)

	var sess Session

	start := time.Now()
	err := d.telemetry.InstrumentOperation(ctx, "connect", "daemon_client", func(ctx context.Context) error {
		var err error
		sess, err = d.dialer.Dial(ctx, info)

		return err
	})

	if err != nil {
		logger.Error("failed to connect to daemon", "err", err, "duration", time.Since(start))

		return nil, err
	}

	logger.Debug("connected to daemon", "duration", time.Since(start))

	return sess, nil
}
