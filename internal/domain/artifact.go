package domain

import "time"

// Artifact is a finalized recording: an ordered sequence of binary chunks
// plus capture metadata. The pipeline builds it and hands it out once the
// end time is set; nothing appends to it afterwards.
type Artifact struct {
	MimeType  string
	StartedAt time.Time
	EndedAt   time.Time
	Chunks    [][]byte
	Bytes     int64
}

func (a *Artifact) Duration() time.Duration {
	return a.EndedAt.Sub(a.StartedAt)
}

// Bytes of all chunks concatenated, in capture order.
func (a *Artifact) Concat() []byte {
	out := make([]byte, 0, a.Bytes)
	for _, c := range a.Chunks {
		out = append(out, c...)
	}
	return out
}
