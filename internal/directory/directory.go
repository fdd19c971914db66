// Package directory answers who the pastors are. The booking core only
// needs to know that a pastor id exists and how to display it.
package directory

import (
	"context"
	"errors"
	"sort"
	"strings"
)

var ErrUnknownPastor = errors.New("unknown pastor")

type Pastor struct {
	ID          string `mapstructure:"id" json:"id"`
	DisplayName string `mapstructure:"display_name" json:"display_name"`
	Bio         string `mapstructure:"bio" json:"bio,omitempty"`
}

// Static is a directory loaded once from configuration.
type Static struct {
	pastors map[string]Pastor
}

func NewStatic(pastors []Pastor) *Static {
	m := make(map[string]Pastor, len(pastors))
	for _, p := range pastors {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			continue
		}
		p.ID = id
		if p.DisplayName == "" {
			p.DisplayName = id
		}
		m[id] = p
	}
	return &Static{pastors: m}
}

func (s *Static) Pastor(ctx context.Context, id string) (Pastor, error) {
	p, ok := s.pastors[strings.TrimSpace(id)]
	if !ok {
		return Pastor{}, ErrUnknownPastor
	}
	return p, nil
}

// Pastors lists every pastor ordered by display name.
func (s *Static) Pastors(ctx context.Context) ([]Pastor, error) {
	out := make([]Pastor, 0, len(s.pastors))
	for _, p := range s.pastors {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
