package cache

import "strconv"

// KeyPrefix - префиксы для разных типов ключей
type KeyPrefix string

const (
	PrefixLink   KeyPrefix = "link"   // link:shortCode
	PrefixLinkID KeyPrefix = "linkid" // linkid:id -> shortCode
	PrefixGone   KeyPrefix = "gone"   // gone:shortCode, метка недавнего удаления
)

// KeyBuilder - построитель ключей кэша
type KeyBuilder struct {
	namespace string // Опциональный namespace для multi-tenancy
}

func NewKeyBuilder(namespace string) *KeyBuilder {
	return &KeyBuilder{namespace: namespace}
}

// Build создает ключ с префиксом и опциональным namespace
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

// Link создает ключ для хранения ссылки по короткому коду
func (k *KeyBuilder) Link(shortCode string) string {
	return k.Build(PrefixLink, shortCode)
}

// LinkID создает ключ обратного маппинга id -> shortCode
func (k *KeyBuilder) LinkID(id int64) string {
	return k.Build(PrefixLinkID, strconv.FormatInt(id, 10))
}

// Gone создает ключ метки удаления короткого кода
func (k *KeyBuilder) Gone(shortCode string) string {
	return k.Build(PrefixGone, shortCode)
}
