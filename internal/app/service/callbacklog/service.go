package callbacklog

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/momobridge/internal/models"
	"github.com/fatflowers/momobridge/pkg/logctx"
	"github.com/fatflowers/momobridge/pkg/tool"
)

// Service keeps the webhook audit trail. Writes are fire-and-forget so a
// slow store never delays answering the network.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

// Save asynchronously persists a callback log row. Nil input or cache-only
// mode is a no-op.
func (s *Service) Save(ctx context.Context, row *models.CallbackLog) {
	if s == nil || s.db == nil || row == nil {
		return
	}
	go func() {
		if row.ID == "" {
			row.ID = tool.GenerateUUIDV7()
		}
		if err := s.db.Save(row).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save callback log: %v", err)
		}
	}()
}

// Module exposes the callback audit log via Fx.
var Module = fx.Options(
	fx.Provide(New),
)
