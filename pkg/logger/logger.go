package logger

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// New configures a logrus logger. Release mode logs JSON, everything else logs text.
func New(level string, release bool) *logrus.Logger {
	l := logrus.New()
	if release {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}

// Gorm routes gorm's SQL logging through logrus.
type Gorm struct {
	log           *logrus.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

func NewGorm(l *logrus.Logger, slowThreshold time.Duration) *Gorm {
	return &Gorm{log: l, level: gormlogger.Warn, slowThreshold: slowThreshold}
}

func (g *Gorm) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *g
	cp.level = level
	return &cp
}

func (g *Gorm) Info(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Info {
		g.log.WithContext(ctx).Infof(msg, args...)
	}
}

func (g *Gorm) Warn(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Warn {
		g.log.WithContext(ctx).Warnf(msg, args...)
	}
}

func (g *Gorm) Error(ctx context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Error {
		g.log.WithContext(ctx).Errorf(msg, args...)
	}
}

func (g *Gorm) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && g.level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		g.log.WithContext(ctx).WithFields(logrus.Fields{"elapsed": elapsed, "rows": rows, "sql": sql}).WithError(err).Error("query failed")
	case g.slowThreshold > 0 && elapsed > g.slowThreshold && g.level >= gormlogger.Warn:
		sql, rows := fc()
		g.log.WithContext(ctx).WithFields(logrus.Fields{"elapsed": elapsed, "rows": rows, "sql": sql}).Warn("slow query")
	case g.level >= gormlogger.Info:
		sql, rows := fc()
		g.log.WithContext(ctx).WithFields(logrus.Fields{"elapsed": elapsed, "rows": rows, "sql": sql}).Debug("query")
	}
}
