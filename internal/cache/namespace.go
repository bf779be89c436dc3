package cache

import "context"

// Namespaced prefixes every key so several feature areas can share one backend
// without seeing each other's entries.
type Namespaced struct {
	inner Store
	ns    string
}

func Namespace(store Store, ns string) *Namespaced {
	return &Namespaced{inner: store, ns: ns}
}

func (n *Namespaced) key(key string) string {
	return n.ns + "/" + key
}

func (n *Namespaced) Get(ctx context.Context, key string) (Entry, error) {
	return n.inner.Get(ctx, n.key(key))
}

func (n *Namespaced) Put(ctx context.Context, key string, entry Entry) error {
	return n.inner.Put(ctx, n.key(key), entry)
}

func (n *Namespaced) Name() string {
	return n.ns
}

// Feature-area namespaces.
const (
	// freshness-gated payloads (market, schemes, irrigation, weather)
	NamespaceFeeds     = "feeds"
	NamespaceSettings  = "settings"
	NamespaceCommunity = "community"
)
