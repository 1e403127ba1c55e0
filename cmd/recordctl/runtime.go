package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/creastat/records"
	"github.com/creastat/records/coordination"
	"github.com/creastat/records/durable"
	"github.com/creastat/records/durable/qdrant"
	"github.com/creastat/records/durable/s3"
	"github.com/creastat/records/durable/supabase"
	"github.com/creastat/records/lifecycle"
	"github.com/creastat/records/metrics"
	"github.com/creastat/records/queue"
	"pkt.systems/pslog"
)

// runtime is one process worth of wiring: backends, the shared throttle and
// a single record store of raw JSON payloads.
type runtime struct {
	cfg      settings
	logger   pslog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	hooks    *lifecycle.Hooks
	users    *queue.UserGauge
	throttle *queue.Throttle
	redis    redis.UniversalClient
	coord    coordination.Store
	durable  durable.Store
	store    *records.Store[json.RawMessage]
}

func openRuntime(ctx context.Context, cfg settings, logger pslog.Logger) (_ *runtime, err error) {
	logger = withLevel(logger, cfg.LogLevel)
	rt := &runtime{
		cfg:      cfg,
		logger:   logger.With("svc", "recordctl"),
		registry: prometheus.NewRegistry(),
		hooks:    lifecycle.New(logger),
	}
	defer func() {
		if err != nil {
			rt.closeBackends()
		}
	}()

	if rt.metrics, err = metrics.New(rt.registry); err != nil {
		return nil, err
	}
	rt.users = queue.NewUserGauge(rt.metrics)
	rt.users.Set(cfg.Users)
	rt.throttle = queue.NewThrottle(queue.Policy{Users: rt.users},
		queue.WithLogger(logger),
		queue.WithMetrics(rt.metrics),
	)

	if rt.coord, err = rt.openCoordination(); err != nil {
		return nil, err
	}
	if rt.durable, err = rt.openDurable(ctx); err != nil {
		return nil, err
	}

	rt.store, err = records.New[json.RawMessage](cfg.Store, cfg.Scope, records.Deps{
		Durable:      rt.durable,
		Coordination: rt.coord,
		Throttle:     rt.throttle,
	},
		records.WithConfig(records.Config{ReconcileInterval: cfg.ReconcileInterval, LockTTL: cfg.LockTTL}),
		records.WithLogger(logger),
		records.WithMetrics(rt.metrics),
		records.WithLifecycle(rt.hooks),
	)
	if err != nil {
		return nil, err
	}
	rt.logger.Debug("recordctl.runtime.ready",
		"store", rt.store.ID(),
		"session", rt.store.SessionID(),
		"durable", cfg.Durable,
		"coordination", cfg.Coordination,
	)
	return rt, nil
}

func (rt *runtime) redisClient() redis.UniversalClient {
	if rt.redis == nil {
		rt.redis = redis.NewClient(&redis.Options{Addr: rt.cfg.RedisAddr})
	}
	return rt.redis
}

func (rt *runtime) openCoordination() (coordination.Store, error) {
	switch rt.cfg.Coordination {
	case "", string(coordination.StoreTypeMemory):
		return coordination.NewStore(coordination.StoreTypeMemory)
	case string(coordination.StoreTypeRedis):
		return coordination.NewStore(coordination.StoreTypeRedis, coordination.WithRedisClient(rt.redisClient()))
	default:
		return nil, fmt.Errorf("unknown coordination store %q", rt.cfg.Coordination)
	}
}

func (rt *runtime) openDurable(ctx context.Context) (durable.Store, error) {
	namespace := records.StoreID(rt.cfg.Store, rt.cfg.Scope)
	switch rt.cfg.Durable {
	case "", string(durable.StoreTypeMemory):
		return durable.NewStore(durable.StoreTypeMemory)
	case string(durable.StoreTypeRedis):
		return durable.NewStore(durable.StoreTypeRedis,
			durable.WithRedisClient(rt.redisClient()),
			durable.WithKeyPrefix("record:"+namespace+"/"),
		)
	case "supabase":
		return supabase.New(supabase.Config{
			URL:       rt.cfg.SupabaseURL,
			APIKey:    rt.cfg.SupabaseKey,
			Table:     rt.cfg.SupabaseTable,
			Namespace: namespace,
		})
	case "qdrant":
		client, err := qdrant.New(qdrant.Config{
			URL:            rt.cfg.QdrantURL,
			APIKey:         rt.cfg.QdrantKey,
			CollectionName: rt.cfg.QdrantCollection,
			Namespace:      namespace,
		})
		if err != nil {
			return nil, err
		}
		if err := client.EnsureCollection(ctx); err != nil {
			_ = client.Close()
			return nil, err
		}
		return client, nil
	case "s3":
		return s3.New(s3.Config{
			Endpoint:       rt.cfg.S3Endpoint,
			Region:         rt.cfg.S3Region,
			Bucket:         rt.cfg.S3Bucket,
			Prefix:         rt.cfg.S3Prefix,
			Namespace:      namespace,
			Insecure:       rt.cfg.S3Insecure,
			ForcePathStyle: rt.cfg.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown durable store %q", rt.cfg.Durable)
	}
}

// close drains the store through the lifecycle hooks, then tears down the
// throttle and backends.
func (rt *runtime) close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, rt.cfg.ShutdownTimeout)
	defer cancel()
	err := rt.hooks.Terminate(ctx)
	return errors.Join(err, rt.closeBackends())
}

// closeBackends closes everything openRuntime created. The redis drivers
// close their client, which may be shared by both stores.
func (rt *runtime) closeBackends() error {
	var errs []error
	if rt.throttle != nil {
		rt.throttle.Close()
	}
	if rt.durable != nil {
		errs = append(errs, rt.durable.Close())
	}
	if rt.coord != nil {
		errs = append(errs, rt.coord.Close())
	}
	for i, err := range errs {
		if errors.Is(err, redis.ErrClosed) {
			errs[i] = nil
		}
	}
	return errors.Join(errs...)
}
