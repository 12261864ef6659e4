package infra

const (
	// RedisNamespace отделяет ключи сервиса в общем redis.
	RedisNamespace = "apicalc"

	RedisKeyHistoryAll = RedisNamespace + ":history:all"
)

// HistoryUserKey ключ кэша истории одного пользователя.
func HistoryUserKey(identityID string) string {
	return RedisNamespace + ":history:user:" + identityID
}

// HistoryGenerationKey считает записи, инвалидировавшие key.
func HistoryGenerationKey(key string) string {
	return key + ":gen"
}
