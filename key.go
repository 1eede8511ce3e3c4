package planit

import (
	"sort"
	"strings"
)

// Key identifies one cached query: a resource type, the tenant that
// scopes it, and optional equality filters. Keys are value types;
// equality is structural, and the canonical string form is stable
// under filter map iteration order.
type Key struct {
	Resource string
	Tenant   string
	filters  map[string]string
	canon    string
}

// NewKey builds a Key. The filters map is copied; a Key never changes
// after construction.
func NewKey(resource, tenant string, filters map[string]string) Key {
	k := Key{Resource: resource, Tenant: tenant}
	if len(filters) > 0 {
		k.filters = make(map[string]string, len(filters))
		for f, v := range filters {
			k.filters[f] = v
		}
	}
	k.canon = canonical(resource, tenant, k.filters)
	return k
}

// CollectionKey is shorthand for the unfiltered collection of one
// resource type within a tenant.
func CollectionKey(resource, tenant string) Key {
	return NewKey(resource, tenant, nil)
}

// ItemKey identifies a single row by id.
func ItemKey(resource, tenant, id string) Key {
	return NewKey(resource, tenant, map[string]string{"id": id})
}

// Filters returns a copy of the filter set.
func (k Key) Filters() map[string]string {
	if k.filters == nil {
		return nil
	}
	out := make(map[string]string, len(k.filters))
	for f, v := range k.filters {
		out[f] = v
	}
	return out
}

// Disabled reports whether the key is guarded: without a tenant no
// fetch may be issued against it.
func (k Key) Disabled() bool {
	return k.Tenant == ""
}

// String returns the canonical form used as the cache map key.
func (k Key) String() string {
	if k.canon == "" {
		// zero-value Key constructed without NewKey
		return canonical(k.Resource, k.Tenant, k.filters)
	}
	return k.canon
}

// Equal reports structural equality.
func (k Key) Equal(other Key) bool {
	return k.String() == other.String()
}

func canonical(resource, tenant string, filters map[string]string) string {
	var b strings.Builder
	b.WriteString(resource)
	b.WriteByte(0x1f)
	b.WriteString(tenant)
	if len(filters) == 0 {
		return b.String()
	}
	names := make([]string, 0, len(filters))
	for f := range filters {
		names = append(names, f)
	}
	sort.Strings(names)
	for _, f := range names {
		b.WriteByte(0x1f)
		b.WriteString(f)
		b.WriteByte('=')
		b.WriteString(filters[f])
	}
	return b.String()
}
