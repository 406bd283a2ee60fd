package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/redis/go-redis/v9"
)

// ErrLeaseLost is returned when releasing a lease that expired and was taken
// by another holder.
var ErrLeaseLost = errors.New("payments: lease lost")

// Locker grants named, expiring leases so that a scheduled job runs on at
// most one replica at a time.
type Locker interface {
	// Acquire returns (nil, nil) when another holder owns the lease.
	Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error)
}

// Lease is a held lock.
type Lease interface {
	Release(ctx context.Context) error
}

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisLocker creates a locker storing keys under prefix.
func NewRedisLocker(client redis.UniversalClient, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error) {
	key := l.prefix + name
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "acquire lease %s", name)
	}
	if !ok {
		return nil, nil
	}
	return &redisLease{client: l.client, key: key, token: token}, nil
}

type redisLease struct {
	client redis.UniversalClient
	key    string
	token  string
}

func (l *redisLease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		return pkgerrors.Wrapf(err, "release lease %s", l.key)
	}
	if n == 0 {
		return ErrLeaseLost
	}
	return nil
}

// LocalLocker implements Locker in process, for single-replica deployments
// and tests.
type LocalLocker struct {
	leases *xsync.MapOf[string, localLease]
	now    func() time.Time
}

type localLease struct {
	token   string
	expires time.Time
}

// NewLocalLocker creates an in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		leases: xsync.NewMapOf[string, localLease](),
		now:    time.Now,
	}
}

func (l *LocalLocker) Acquire(_ context.Context, name string, ttl time.Duration) (Lease, error) {
	now := l.now()
	token := uuid.NewString()
	acquired := false
	l.leases.Compute(name, func(old localLease, loaded bool) (localLease, bool) {
		if loaded && now.Before(old.expires) {
			return old, false
		}
		acquired = true
		return localLease{token: token, expires: now.Add(ttl)}, false
	})
	if !acquired {
		return nil, nil
	}
	return &heldLocalLease{locker: l, name: name, token: token}, nil
}

type heldLocalLease struct {
	locker *LocalLocker
	name   string
	token  string
}

func (l *heldLocalLease) Release(context.Context) error {
	released := false
	l.locker.leases.Compute(l.name, func(old localLease, loaded bool) (localLease, bool) {
		if loaded && old.token == l.token {
			released = true
			return old, true
		}
		return old, !loaded
	})
	if !released {
		return ErrLeaseLost
	}
	return nil
}
