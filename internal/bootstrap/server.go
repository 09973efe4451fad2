package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Domenick1991/flightdesk/api"
	"github.com/Domenick1991/flightdesk/config"
	opsapi "github.com/Domenick1991/flightdesk/internal/api/ops_service_api"
	"github.com/Domenick1991/flightdesk/internal/payment"
	"github.com/Domenick1991/flightdesk/internal/service/booking"
	"github.com/Domenick1991/flightdesk/internal/service/search"
	"github.com/Domenick1991/flightdesk/internal/service/webhook"
	"github.com/gin-gonic/gin"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type Services struct {
	Searches search.SearchUseCase
	Bookings booking.BookingUseCase
	Webhooks *webhook.Ingress
	Verifier *payment.Verifier
}

type Servers struct {
	grpcServer *grpc.Server
	httpServer *http.Server
}

// Run starts the gRPC ops server and the HTTP server (public API, webhooks,
// ops gateway, swagger) and blocks until ctx is canceled or a server fails.
func Run(ctx context.Context, cfg *config.Config, log *zap.Logger, svc Services) error {
	s, err := newServers(ctx, cfg, log, svc)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)

	lis, err := net.Listen("tcp", cfg.GRPC.Address)
	if err != nil {
		return fmt.Errorf("listen gRPC %s: %w", cfg.GRPC.Address, err)
	}
	go func() { errCh <- s.grpcServer.Serve(lis) }()

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Info("servers started", zap.String("http", cfg.HTTP.Address), zap.String("grpc", cfg.GRPC.Address))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.grpcServer.GracefulStop()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

func newServers(ctx context.Context, cfg *config.Config, log *zap.Logger, svc Services) (*Servers, error) {
	grpcSrv := grpc.NewServer()
	opsapi.RegisterOpsServiceServer(grpcSrv, opsapi.NewServer(svc.Bookings, log))

	gateway := runtime.NewServeMux()
	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if err := opsapi.RegisterOpsServiceHandlerFromEndpoint(ctx, gateway, cfg.GRPC.Address, opts); err != nil {
		return nil, fmt.Errorf("register ops gateway: %w", err)
	}

	router := api.NewRouter(log, cfg.HTTP.AllowOrigins, api.Handlers{
		Searches: api.NewSearchHandler(svc.Searches),
		Bookings: api.NewBookingHandler(svc.Bookings, svc.Searches),
		Webhooks: api.NewWebhookHandler(svc.Webhooks),
		Payments: api.NewPaymentHandler(svc.Bookings, svc.Verifier, log),
	})
	router.Any("/ops/*path", gin.WrapH(gateway))

	if cfg.HTTP.SwaggerDir != "" {
		router.Static("/swagger", cfg.HTTP.SwaggerDir)
		router.GET("/docs/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json"))))
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Servers{
		grpcServer: grpcSrv,
		httpServer: httpSrv,
	}, nil
}
