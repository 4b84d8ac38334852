package lockstep

import "os"

type Config struct {
	RedisAddress          string
	RedisPassword         string
	StatsdAddress         string
	LogLevel              string
	PerOperationChecksums bool
}

func GetConfig() Config {
	return Config{
		RedisAddress:          getEnv("LOCKSTEP_REDIS_ADDRESS", "localhost:6379"),
		RedisPassword:         getEnv("LOCKSTEP_REDIS_PASSWORD", ""),
		StatsdAddress:         getEnv("LOCKSTEP_STATSD_ADDRESS", ""),
		LogLevel:              getEnv("LOCKSTEP_LOG_LEVEL", "info"),
		PerOperationChecksums: getEnv("LOCKSTEP_PER_OPERATION_CHECKSUMS", "false") == "true",
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
