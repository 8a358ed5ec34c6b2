package scheduling

import (
	"context"
	"time"

	"protosched/internal/eventbus"
	"protosched/internal/storage"
	logx "protosched/pkg/logx"
)

// utcOffsetMinutes is stored with the sign convention of a browser's
// getTimezoneOffset: minutes west of UTC.
func utcOffsetMinutes(t time.Time) int {
	_, east := t.Zone()
	return -east / 60
}

// NoteTimezone compares the schedule location's name and offset at now with
// the stored ones and stores the current values. When the zone itself
// changed, the old offset is kept under UTC_OFFSET_PREV (unless one is
// already pending) so the next generation can still match completions made
// under the old zone. Daylight-saving transitions only update UTC_OFFSET:
// the generator keeps stored instants stable across them.
//
// It returns nil when nothing changed or nothing was stored before.
func (s *Service) NoteTimezone(ctx context.Context, now time.Time) (*TimezoneChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loc := s.Location()
	local := now.In(loc)
	zone := loc.String()
	offset := utcOffsetMinutes(local)

	storedZone, hasZone, err := storage.Get[string](ctx, s.store, storage.KeyTimeZone)
	if err != nil {
		return nil, err
	}
	storedOffset, hasOffset, err := storage.Get[int](ctx, s.store, storage.KeyUTCOffset)
	if err != nil {
		return nil, err
	}

	save := func() error {
		if err := storage.Set(ctx, s.store, storage.KeyTimeZone, zone); err != nil {
			return err
		}
		return storage.Set(ctx, s.store, storage.KeyUTCOffset, offset)
	}

	if !hasZone && !hasOffset {
		return nil, save()
	}
	if storedZone == zone && storedOffset == offset {
		return nil, nil
	}

	change := &TimezoneChange{
		From:       storedZone,
		To:         zone,
		FromOffset: -storedOffset,
		ToOffset:   -offset,
		ZoneMoved:  storedZone != zone,
	}
	if change.ZoneMoved && hasOffset {
		_, pending, err := storage.Get[int](ctx, s.store, storage.KeyUTCOffsetPrev)
		if err != nil {
			return nil, err
		}
		if !pending {
			if err := storage.Set(ctx, s.store, storage.KeyUTCOffsetPrev, storedOffset); err != nil {
				return nil, err
			}
		}
	}
	if err := save(); err != nil {
		return nil, err
	}

	s.log.Info("timezone changed",
		logx.String("from", change.From),
		logx.String("to", change.To),
		logx.Int("from_offset", change.FromOffset),
		logx.Int("to_offset", change.ToOffset),
		logx.Bool("zone_moved", change.ZoneMoved),
	)
	s.bus.Publish(eventbus.Event{Type: eventbus.TypeTimezoneChanged, Time: now, Data: *change})
	return change, nil
}
