package suite

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// EnvRedisAddr points the suite at a running redis instead of starting a container.
	EnvRedisAddr = "REDIS_TEST_ADDR"
	// EnvRedisTag overrides the redis image tag.
	EnvRedisTag = "REDIS_TEST_TAG"
)

const (
	containerTTL = 120
	startTimeout = 120 * time.Second

	redisPort       = "6379/tcp"
	redisImage      = "redis"
	defaultRedisTag = "7-alpine"
)

// Suite hands a repository test a redis client and a key namespace of its own.
type Suite struct {
	*testing.T
	Logger *zap.Logger

	Storage *redis.Client

	namespace string
}

// New connects to the redis named by REDIS_TEST_ADDR, or starts a disposable container.
// Docker-backed tests are skipped in short mode.
func New(t *testing.T) (context.Context, *Suite) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	t.Cleanup(cancel)

	addr := os.Getenv(EnvRedisAddr)
	if addr == "" {
		if testing.Short() {
			t.Skip("skipping docker-backed test in short mode")
		}

		addr = runContainer(t)
	}

	client := connect(ctx, t, addr)

	return ctx, &Suite{
		T:         t,
		Logger:    zap.NewNop(),
		Storage:   client,
		namespace: "test:" + uuid.NewString(),
	}
}

// Key returns name inside the suite's namespace; everything under it is deleted on cleanup.
func (that *Suite) Key(name string) string {
	key := that.namespace + ":" + name

	that.Cleanup(func() {
		_ = that.Storage.Del(context.Background(), key).Err()
	})

	return key
}

func runContainer(t *testing.T) string {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("could not connect to docker: %v", err)
	}
	pool.MaxWait = startTimeout

	tag := os.Getenv(EnvRedisTag)
	if tag == "" {
		tag = defaultRedisTag
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: redisImage,
		Tag:        tag,
	}, func(hostConf *docker.HostConfig) {
		hostConf.AutoRemove = true
		hostConf.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("could not start redis %s: %v", tag, err)
	}

	_ = resource.Expire(containerTTL)

	t.Cleanup(func() {
		if purgeErr := pool.Purge(resource); purgeErr != nil {
			t.Errorf("could not purge redis container: %v", purgeErr)
		}
	})

	addr := resource.GetHostPort(redisPort)

	if err = pool.Retry(func() error {
		probe := redis.NewClient(&redis.Options{Addr: addr})
		defer probe.Close()

		return probe.Ping(context.Background()).Err()
	}); err != nil {
		t.Fatalf("redis container never became ready: %v", err)
	}

	return addr
}

func connect(ctx context.Context, t *testing.T, addr string) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("could not reach redis at %s: %v", addr, err)
	}

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}
