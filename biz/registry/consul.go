package registry

import (
	"fmt"
	"time"

	"github.com/hashicorp/consul/api"
)

// ConsulHelper 封装 Consul 注册与分布式锁
// 使用前请确保 Consul agent 已启动
type ConsulHelper struct {
	client *api.Client
}

// NewConsulHelperWithAddrs 支持多个 Consul 地址高可用
func NewConsulHelperWithAddrs(addrs []string, username, password string) (*ConsulHelper, error) {
	var lastErr error
	for _, addr := range addrs {
		cfg := api.DefaultConfig()
		cfg.Address = addr
		if username != "" {
			cfg.HttpAuth = &api.HttpBasicAuth{Username: username, Password: password}
		}
		cli, err := api.NewClient(cfg)
		if err != nil {
			lastErr = err
			continue
		}
		// 尝试健康检查
		if _, err := cli.Agent().Self(); err != nil {
			lastErr = err
			continue
		}
		return &ConsulHelper{client: cli}, nil
	}
	return nil, fmt.Errorf("all consul addresses failed: %v", lastErr)
}

// RegisterService 注册本节点 HTTP 服务，TCP 健康检查
func (c *ConsulHelper) RegisterService(name, nodeID, host string, port int, tags []string) error {
	reg := &api.AgentServiceRegistration{
		ID:      nodeID,
		Name:    name,
		Address: host,
		Port:    port,
		Tags:    tags,
		Check: &api.AgentServiceCheck{
			TCP:                            fmt.Sprintf("%s:%d", host, port),
			Interval:                       "10s",
			Timeout:                        "2s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}
	return c.client.Agent().ServiceRegister(reg)
}

func (c *ConsulHelper) Deregister(nodeID string) error {
	return c.client.Agent().ServiceDeregister(nodeID)
}

// TryLock 获取分布式锁，拿不到时 ok=false
func (c *ConsulHelper) TryLock(key string) (unlock func(), ok bool, err error) {
	lock, err := c.client.LockOpts(&api.LockOptions{
		Key:          key,
		LockTryOnce:  true,
		LockWaitTime: 5 * time.Second,
	})
	if err != nil {
		return nil, false, err
	}
	leaderCh, err := lock.Lock(nil)
	if err != nil {
		return nil, false, err
	}
	if leaderCh == nil {
		return nil, false, nil // 未获取到锁
	}
	return func() { _ = lock.Unlock() }, true, nil
}

// Client 返回 consul client
func (c *ConsulHelper) Client() *api.Client {
	return c.client
}
