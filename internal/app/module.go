package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/momobridge/internal/app/api/server"
	"github.com/fatflowers/momobridge/internal/app/service/callbacklog"
	"github.com/fatflowers/momobridge/internal/app/service/payment"
	"github.com/fatflowers/momobridge/internal/app/service/reconcile"
	"github.com/fatflowers/momobridge/internal/app/service/store"
	"github.com/fatflowers/momobridge/internal/app/service/txcache"
	"github.com/fatflowers/momobridge/internal/platform/db"
	"github.com/fatflowers/momobridge/internal/platform/momo"
	"github.com/fatflowers/momobridge/pkg/config"
	"github.com/fatflowers/momobridge/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	momo.Module,
	txcache.Module,
	store.Module,
	callbacklog.Module,
	reconcile.Module,
	payment.Module,
	server.Module,
)
