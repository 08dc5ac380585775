package balancer

import (
	"context"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/balancer"
	"google.golang.org/grpc/balancer/base"

	"github.com/scode/hashdial-go"
)

// Name is the balancer name to use in a grpc service config, e.g.
// `{"loadBalancingConfig": [{"hashdial": {}}]}`.
const Name = "hashdial"

func init() {
	balancer.Register(base.NewBalancerBuilder(Name, &pickerBuilder{}, base.Config{HealthCheck: true}))
}

type affinityKey struct{}

// WithKey attaches the affinity key routing the RPC issued with the returned
// context. RPCs sharing a key reach the same backend for as long as that
// backend stays ready. Without a key, the full method name is hashed, which
// pins each method to one backend.
func WithKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, affinityKey{}, key)
}

// KeyFromContext reports the affinity key attached by WithKey, if any.
func KeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(affinityKey{}).(string)
	return key, ok
}

type pickerBuilder struct{}

// Build constructs a picker over the ready backends. It runs on every
// readiness change, so the ring is rebuilt from scratch each time; the ring's
// determinism keeps key affinity stable for backends present in both the old
// and new set.
func (*pickerBuilder) Build(info base.PickerBuildInfo) balancer.Picker {
	ring := hashdial.NewRing(0, nil)
	conns := make(map[string]balancer.SubConn, len(info.ReadySCs))

	for sc, scInfo := range info.ReadySCs {
		addr := scInfo.Address.Addr
		if _, ok := conns[addr]; ok {
			continue
		}
		if err := ring.AddNode(addr); err != nil {
			logrus.WithFields(logrus.Fields{
				"balancer": Name,
				"addr":     addr,
			}).Warnln("skipping backend:", err)
			continue
		}
		conns[addr] = sc
	}

	logrus.WithFields(logrus.Fields{
		"balancer": Name,
		"backends": len(conns),
	}).Debugln("rebuilt ring picker")

	return &ringPicker{ring: ring, conns: conns}
}

type ringPicker struct {
	ring  *hashdial.Ring
	conns map[string]balancer.SubConn
}

func (p *ringPicker) Pick(info balancer.PickInfo) (balancer.PickResult, error) {
	key, ok := KeyFromContext(info.Ctx)
	if !ok {
		key = info.FullMethodName
	}

	addr, err := p.ring.Locate(key)
	if err != nil {
		return balancer.PickResult{}, balancer.ErrNoSubConnAvailable
	}
	sc, ok := p.conns[addr]
	if !ok {
		return balancer.PickResult{}, balancer.ErrNoSubConnAvailable
	}
	return balancer.PickResult{SubConn: sc}, nil
}
