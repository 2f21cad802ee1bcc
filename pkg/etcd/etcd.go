package etcd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Client etcd客户端，用于发现PLC后端节点
type Client struct {
	cli     *clientv3.Client
	timeout time.Duration
}

// NewClient 创建etcd客户端
func NewClient(endpoints []string) (*Client, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	return &Client{
		cli:     cli,
		timeout: 5 * time.Second,
	}, nil
}

// ServicePrefix 返回服务注册的键前缀
func ServicePrefix(serviceName string) string {
	return fmt.Sprintf("/services/%s/", serviceName)
}

// Discover 发现服务节点，返回排序后的节点地址
func (c *Client) Discover(ctx context.Context, serviceName string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prefix := ServicePrefix(serviceName)
	resp, err := c.cli.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to get keys with prefix %s: %w", prefix, err)
	}

	nodes := make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		if len(kv.Value) > 0 {
			nodes = append(nodes, string(kv.Value))
		}
	}
	sort.Strings(nodes)
	return nodes, nil
}

// WatchNodes 监听服务节点变化，ctx取消后停止
func (c *Client) WatchNodes(ctx context.Context, serviceName string, onPut, onDelete func(node string)) {
	prefix := ServicePrefix(serviceName)
	go func() {
		watchChan := c.cli.Watch(ctx, prefix, clientv3.WithPrefix(), clientv3.WithPrevKV())
		for watchResp := range watchChan {
			for _, event := range watchResp.Events {
				switch event.Type {
				case clientv3.EventTypePut:
					node := string(event.Kv.Value)
					logrus.Infof("[Etcd] Backend node up: %s", node)
					onPut(node)
				case clientv3.EventTypeDelete:
					// 删除事件没有value，从PrevKv中取节点地址
					if event.PrevKv == nil {
						continue
					}
					node := string(event.PrevKv.Value)
					logrus.Infof("[Etcd] Backend node down: %s", node)
					onDelete(node)
				}
			}
		}
	}()
}

// Close 关闭客户端
func (c *Client) Close() error {
	return c.cli.Close()
}
