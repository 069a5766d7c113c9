package conf

import (
	"os"
	"strings"
)

// applyEnvOverrides 环境变量优先于 yaml，便于容器部署
func applyEnvOverrides(c *Config) {
	c.Postgres.DSN = getEnv("CEX_POSTGRES_DSN", c.Postgres.DSN)
	c.Redis.Address = getEnv("CEX_REDIS_ADDR", c.Redis.Address)
	c.Exchange.Storage = getEnv("CEX_STORAGE", c.Exchange.Storage)
	if v := os.Getenv("CEX_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = parseList(v)
	}
	if v := os.Getenv("CEX_CONSUL_ADDR"); v != "" {
		c.Registry.RegistryAddress = parseList(v)
	}
}

func parseList(s string) []string {
	var res []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			res = append(res, p)
		}
	}
	return res
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
