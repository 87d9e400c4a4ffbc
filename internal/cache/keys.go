package cache

type KeyPrefix string

const (
	PrefixLink      KeyPrefix = "link"  // link:shortKey
	PrefixShare     KeyPrefix = "share" // share:shortKey
	PrefixRateLimit KeyPrefix = "rate"  // rate:clientIP
)

// KeyBuilder assembles namespaced cache keys.
type KeyBuilder struct {
	namespace string
}

func NewKeyBuilder(namespace string) *KeyBuilder {
	return &KeyBuilder{namespace: namespace}
}

func (k *KeyBuilder) Build(prefix KeyPrefix, parts ...string) string {
	key := string(prefix)

	if k.namespace != "" {
		key = k.namespace + ":" + key
	}

	for _, part := range parts {
		key += ":" + part
	}

	return key
}

// Link returns the snapshot cache key for a short link.
func (k *KeyBuilder) Link(shortKey string) string {
	return k.Build(PrefixLink, shortKey)
}

// Share returns the snapshot cache key for a text share.
func (k *KeyBuilder) Share(shortKey string) string {
	return k.Build(PrefixShare, shortKey)
}

// RateLimit returns the rate-limit counter key for a client IP.
func (k *KeyBuilder) RateLimit(clientIP string) string {
	return k.Build(PrefixRateLimit, clientIP)
}

var DefaultKeyBuilder = NewKeyBuilder("")

var CacheKeys = struct {
	Link      func(string) string
	Share     func(string) string
	RateLimit func(string) string
}{
	Link:      DefaultKeyBuilder.Link,
	Share:     DefaultKeyBuilder.Share,
	RateLimit: DefaultKeyBuilder.RateLimit,
}
