package catalog

import (
	"context"

	"github.com/ManuGH/cinegate/internal/auth"
	"github.com/ManuGH/cinegate/internal/library"
	xglog "github.com/ManuGH/cinegate/internal/log"
)

// EnableWatch turns a watch toggle on.
func (s *Service) EnableWatch(ctx context.Context, p auth.Principal, kind library.ToggleKind, id int64) error {
	return s.setWatch(ctx, p, "EnableWatch", kind, id, true)
}

// DisableWatch turns a watch toggle off.
func (s *Service) DisableWatch(ctx context.Context, p auth.Principal, kind library.ToggleKind, id int64) error {
	return s.setWatch(ctx, p, "DisableWatch", kind, id, false)
}

func (s *Service) setWatch(ctx context.Context, p auth.Principal, op string, kind library.ToggleKind, id int64, enabled bool) error {
	if err := requireStaff(op, p); err != nil {
		return err
	}
	if err := s.store.SetWatchEnabled(ctx, kind, id, enabled); err != nil {
		return err
	}
	logger := s.logger(ctx, p)
	logger.Info().
		Str(xglog.FieldEvent, "watch.toggled").
		Str("kind", string(kind)).
		Int64("id", id).
		Bool("enabled", enabled).
		Msg("watch toggle changed")
	return nil
}
