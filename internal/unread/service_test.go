package unread

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeGrants struct {
	channels []string
	err      error
}

func (f *fakeGrants) ListChannelIDs(ctx context.Context, wallet string) ([]string, error) {
	return f.channels, f.err
}

type fakeMarkers struct {
	markers map[string]time.Time
	err     error
}

func (f *fakeMarkers) Map(ctx context.Context, wallet string) (map[string]time.Time, error) {
	return f.markers, f.err
}

type fakeLatest struct {
	latest map[string]time.Time
	err    error
}

func (f *fakeLatest) LatestPerChannel(ctx context.Context, channelIDs []string) (map[string]time.Time, error) {
	return f.latest, f.err
}

func TestEvaluate(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		grants  *fakeGrants
		markers *fakeMarkers
		latest  *fakeLatest
		want    []string
	}{
		{
			name:    "newer activity is unread",
			grants:  &fakeGrants{channels: []string{"chan-1"}},
			markers: &fakeMarkers{markers: map[string]time.Time{"chan-1": base}},
			latest:  &fakeLatest{latest: map[string]time.Time{"chan-1": base.Add(time.Minute)}},
			want:    []string{"chan-1"},
		},
		{
			name:    "viewing clears unread",
			grants:  &fakeGrants{channels: []string{"chan-1"}},
			markers: &fakeMarkers{markers: map[string]time.Time{"chan-1": base.Add(time.Hour)}},
			latest:  &fakeLatest{latest: map[string]time.Time{"chan-1": base}},
			want:    []string{},
		},
		{
			name:    "marker equal to latest is read",
			grants:  &fakeGrants{channels: []string{"chan-1"}},
			markers: &fakeMarkers{markers: map[string]time.Time{"chan-1": base}},
			latest:  &fakeLatest{latest: map[string]time.Time{"chan-1": base}},
			want:    []string{},
		},
		{
			name:    "never viewed channel with any activity is unread",
			grants:  &fakeGrants{channels: []string{"chan-1"}},
			markers: &fakeMarkers{markers: map[string]time.Time{}},
			latest:  &fakeLatest{latest: map[string]time.Time{"chan-1": base}},
			want:    []string{"chan-1"},
		},
		{
			name:    "channel with no cached messages is read",
			grants:  &fakeGrants{channels: []string{"chan-1"}},
			markers: &fakeMarkers{markers: map[string]time.Time{}},
			latest:  &fakeLatest{latest: map[string]time.Time{}},
			want:    []string{},
		},
		{
			name:    "no grants",
			grants:  &fakeGrants{},
			markers: &fakeMarkers{},
			latest:  &fakeLatest{},
			want:    []string{},
		},
		{
			name:    "grant load failure degrades to empty",
			grants:  &fakeGrants{err: errors.New("db down")},
			markers: &fakeMarkers{},
			latest:  &fakeLatest{},
			want:    []string{},
		},
		{
			name:    "marker load failure degrades to empty",
			grants:  &fakeGrants{channels: []string{"chan-1"}},
			markers: &fakeMarkers{err: errors.New("db down")},
			latest:  &fakeLatest{latest: map[string]time.Time{"chan-1": base}},
			want:    []string{},
		},
		{
			name:    "latest load failure degrades to empty",
			grants:  &fakeGrants{channels: []string{"chan-1"}},
			markers: &fakeMarkers{markers: map[string]time.Time{}},
			latest:  &fakeLatest{err: errors.New("db down")},
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(nil, tt.grants, tt.markers, tt.latest)
			got := svc.Evaluate(context.Background(), "wallet-1")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateIndependentChannels(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(nil,
		&fakeGrants{channels: []string{"chan-1", "chan-2", "chan-3"}},
		&fakeMarkers{markers: map[string]time.Time{
			"chan-1": base,
			"chan-2": base,
		}},
		&fakeLatest{latest: map[string]time.Time{
			"chan-1": base.Add(time.Minute),
			"chan-2": base.Add(-time.Minute),
			"chan-3": base,
		}},
	)

	got := svc.Evaluate(context.Background(), "wallet-1")
	assert.ElementsMatch(t, []string{"chan-1", "chan-3"}, got)
}
