package web

import (
	"fmt"
	"time"

	"github.com/cali-upid/internal/config"
	"github.com/cali-upid/internal/record"
	"github.com/cali-upid/internal/web/handlers"
)

// handlerConfig picks the settings the handlers need out of the application config
func handlerConfig(cfg *config.Config) handlers.Config {
	return handlers.Config{
		Fields:       record.Fields{Lat: cfg.Pipeline.LatField, Lon: cfg.Pipeline.LonField},
		MaxBodyBytes: int64(cfg.Server.MaxBodyMB) << 20,
		Timeout:      seconds(cfg.Server.BatchTimeout),
		Debug:        cfg.Debug,
	}
}

func listenAddr(s config.ServerConfig) string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
