package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// EchoZapLogger logs every request with zap: errors at Error, 4xx and 3xx at Warn,
// everything else at Info.
func EchoZapLogger(log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			res := c.Response()

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.String("remote_ip", c.RealIP()),
				zap.String("user_agent", req.UserAgent()),
			}
			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = res.Header().Get(echo.HeaderXRequestID)
			}
			if id != "" {
				fields = append(fields, zap.String("request_id", id))
			}

			err := next(c)

			fields = append(fields,
				zap.Int("status", res.Status),
				zap.Duration("latency", time.Since(start)),
			)
			if err != nil {
				log.Error("Handler error", append(fields, zap.Error(err))...)
				return err
			}

			switch n := res.Status; {
			case n >= http.StatusInternalServerError:
				log.Error("Server error", fields...)
			case n >= http.StatusBadRequest:
				log.Warn("Client error", fields...)
			case n >= http.StatusMultipleChoices:
				log.Warn("Redirection", fields...)
			default:
				log.Info("Success", fields...)
			}
			return nil
		}
	}
}
