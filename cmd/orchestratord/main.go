// Command orchestratord is the federated-learning orchestrator: it serves
// the device-facing gRPC surface, the operator-facing HTTP API, and runs
// the training round coordinator and the heartbeat sweep loop in the
// background.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"

	"github.com/edgeorchestra/orchestra/pkg/auth"
	"github.com/edgeorchestra/orchestra/pkg/bus"
	"github.com/edgeorchestra/orchestra/pkg/config"
	"github.com/edgeorchestra/orchestra/pkg/coordinator"
	"github.com/edgeorchestra/orchestra/pkg/devicestore"
	"github.com/edgeorchestra/orchestra/pkg/heartbeat"
	"github.com/edgeorchestra/orchestra/pkg/httpapi"
	"github.com/edgeorchestra/orchestra/pkg/jobstore"
	"github.com/edgeorchestra/orchestra/pkg/modelcontainer"
	"github.com/edgeorchestra/orchestra/pkg/rpcapi"
	"github.com/edgeorchestra/orchestra/pkg/security"
)

func main() {
	configPath := flag.String("config", "orchestrator.yaml", "Path to orchestrator configuration file")
	memoryBackends := flag.Bool("memory-backends", false, "Use in-memory device/job/model stores instead of Postgres")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("orchestratord: load config: %v", err)
	}

	devices, jobs, models, err := openStores(cfg, *memoryBackends)
	if err != nil {
		log.Fatalf("orchestratord: open stores: %v", err)
	}
	defer devices.Close()
	defer jobs.Close()
	defer models.Close()

	b, err := bus.New(cfg.Cache)
	if err != nil {
		log.Fatalf("orchestratord: connect bus: %v", err)
	}

	authCfg, err := cfg.AuthManagerConfig()
	if err != nil {
		log.Fatalf("orchestratord: auth config: %v", err)
	}
	authMgr, err := auth.New(authCfg)
	if err != nil {
		log.Fatalf("orchestratord: new auth manager: %v", err)
	}

	var tlsMgr *security.TLSManager
	if cfg.TLS.Enabled {
		tlsMgr, err = security.NewTLSManager(cfg.TLS, "./certs")
		if err != nil {
			log.Fatalf("orchestratord: new tls manager: %v", err)
		}
	}

	registry := modelcontainer.DefaultRegistry()
	if cfg.Registry != "" {
		registry, err = modelcontainer.LoadRegistry(cfg.Registry)
		if err != nil {
			log.Fatalf("orchestratord: load architecture registry: %v", err)
		}
	}

	monitor := heartbeat.New(b, devices, cfg.Heartbeat)
	coordCfg := coordinator.DefaultConfig()
	coordCfg.RoundTimeout = cfg.Round.Timeout()
	coord := coordinator.New(jobs, models, devices, b, registry, coordinator.DefaultEvaluator{}, coordCfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := coord.Resume(ctx); err != nil {
		log.Printf("orchestratord: resume in-flight jobs: %v", err)
	}

	go monitor.RunSweep(ctx)

	svc := rpcapi.NewService(devices, b, monitor, authMgr)
	var grpcOpts []grpc.ServerOption
	if tlsMgr != nil {
		opts, err := tlsMgr.NewServerOptions()
		if err != nil {
			log.Fatalf("orchestratord: tls server options: %v", err)
		}
		grpcOpts = opts
	}
	grpcServer := rpcapi.NewServer(svc, grpcOpts...)

	rpcLis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.RPC.Port))
	if err != nil {
		log.Fatalf("orchestratord: listen rpc: %v", err)
	}
	go func() {
		log.Printf("orchestratord: rpc listening on %s", rpcLis.Addr())
		if err := grpcServer.Serve(rpcLis); err != nil {
			log.Printf("orchestratord: rpc server stopped: %v", err)
		}
	}()

	httpSrv := httpapi.New(coord, devices, jobs, models, b, authMgr, tlsMgr, cfg.HTTP)
	go func() {
		log.Printf("orchestratord: http listening on :%d", cfg.HTTP.Port)
		if err := httpSrv.ListenAndServe(); err != nil {
			log.Printf("orchestratord: http server stopped: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("orchestratord: shutting down")
	cancel()
	grpcServer.GracefulStop()
}

func openStores(cfg *config.Config, useMemory bool) (devicestore.Store, jobstore.JobStore, jobstore.ModelStore, error) {
	if useMemory {
		return devicestore.NewMemoryStore(), jobstore.NewMemoryJobStore(), jobstore.NewMemoryModelStore(), nil
	}
	devices, err := devicestore.NewPostgresStore(cfg.Database)
	if err != nil {
		return nil, nil, nil, err
	}
	jobs, err := jobstore.NewPostgresStore(jobstore.PostgresConfig(cfg.Database))
	if err != nil {
		return nil, nil, nil, err
	}
	models, err := jobstore.NewPostgresModelStore(jobstore.PostgresConfig(cfg.Database))
	if err != nil {
		return nil, nil, nil, err
	}
	return devices, jobs, models, nil
}
