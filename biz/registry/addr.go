package registry

import (
	"fmt"
	"net"
	"os"
	"strconv"
)

// 容器部署时由编排注入
var hostEnvKeys = []string{"POD_IP", "HOST_IP", "SERVICE_HOST"}

// AdvertiseAddr 把监听地址换算成注册到 consul 的 host:port；未指定 host 时取本机内网 IP
func AdvertiseAddr(listen string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(listen)
	if err != nil {
		return "", 0, fmt.Errorf("parse listen address %q: %w", listen, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return "", 0, fmt.Errorf("invalid port in %q", listen)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = localIP()
	}
	return host, port, nil
}

func localIP() string {
	for _, k := range hostEnvKeys {
		if ip := os.Getenv(k); ip != "" {
			return ip
		}
	}
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String()
		}
	}
	return "127.0.0.1"
}
