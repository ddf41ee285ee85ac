package services

import (
	"context"
	"log/slog"
)

// audit writes one structured line per admin mutation.
func audit(ctx context.Context, actor, action, target, note string) {
	slog.InfoContext(ctx, "audit", "actor", actor, "action", action, "target", target, "note", note)
}
