package archive

import (
	"context"
	"errors"

	"github.com/kapu/chessmeet/internal/session"
)

// Multi fans a record out to every configured sink and reports the first
// failure after trying all of them.
type Multi struct {
	sinks []session.Archiver
}

func NewMulti(sinks ...session.Archiver) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *Multi) Empty() bool { return m == nil || len(m.sinks) == 0 }

func (m *Multi) SaveFinal(ctx context.Context, rec session.Record) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.SaveFinal(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
