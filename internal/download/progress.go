package download

import "io"

// progressReader reports cumulative bytes read every interval bytes and once
// when the read crosses 5% of a known total.
type progressReader struct {
	r          io.Reader
	total      int64
	interval   int64
	onProgress func(read, total int64)

	read      int64
	sinceLast int64
}

func newProgressReader(r io.Reader, total, interval int64, cb func(read, total int64)) *progressReader {
	return &progressReader{r: r, total: total, interval: interval, onProgress: cb}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n <= 0 {
		return n, err
	}

	prev := p.read
	p.read += int64(n)
	p.sinceLast += int64(n)

	crossedFirstStep := p.total > 0 && prev*100/p.total < 5 && p.read*100/p.total >= 5

	if p.sinceLast >= p.interval || crossedFirstStep {
		p.onProgress(p.read, p.total)
		p.sinceLast = 0
	}

	return n, err
}
