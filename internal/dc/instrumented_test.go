package dc_test

import (
	"context"
	"errors"
	"testing"

	"github.com/italolelis/torrent_feeder/internal/dc"
	"github.com/italolelis/torrent_feeder/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDialer struct {
	sess dc.Session
	err  error
	got  dc.ConnectionInfo
}

func (s *stubDialer) Dial(ctx context.Context, info dc.ConnectionInfo) (dc.Session, error) {
	s.got = info

	return s.sess, s.err
}

func TestInstrumentedDialer(t *testing.T) {
	tel, err := telemetry.New(context.Background(), telemetry.Config{Enabled: true, ServiceName: "dc_test"})
	require.NoError(t, err)

	defer tel.Shutdown(context.Background())

	t.Run("passes connection info through", func(t *testing.T) {
		stub := &stubDialer{}
		info := dc.ConnectionInfo{Host: "seedbox", Port: 8112, Password: "deluge"}

		_, err := dc.NewInstrumentedDialer(stub, tel).Dial(context.Background(), info)
		require.NoError(t, err)
		assert.Equal(t, info, stub.got)
	})

	t.Run("returns dial errors", func(t *testing.T) {
		boom := errors.New("connection refused")

		sess, err := dc.NewInstrumentedDialer(&stubDialer{err: boom}, tel).Dial(context.Background(), dc.ConnectionInfo{})
		require.ErrorIs(t, err, boom)
		assert.Nil(t, sess)
	})

	t.Run("works without telemetry", func(t *testing.T) {
		stub := &stubDialer{}

		_, err := dc.NewInstrumentedDialer(stub, nil).Dial(context.Background(), dc.ConnectionInfo{Host: "a"})
		require.NoError(t, err)
		assert.Equal(t, "a", stub.got.Host)
	})
}
