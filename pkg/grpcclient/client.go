// Package grpcclient 提供 gRPC 客户端工厂，带 keepalive、重试拦截器与 trace 注入
package grpcclient

import (
	"context"
	"fmt"
	"time"

	retry "github.com/cenkalti/backoff/v5"
	"github.com/wyfcoding/solarhealth/pkg/logger"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
)

// ClientConfig gRPC 客户端配置
type ClientConfig struct {
	// 目标地址
	Target string
	// 连接超时（秒）
	ConnTimeout int
	// 请求超时（秒）
	RequestTimeout int
	// 最大重试次数
	MaxRetries int
	// 重试延迟（毫秒）
	RetryDelay int
	// Keepalive 间隔（秒），0 表示关闭
	KeepaliveInterval int
}

// NewClient 创建 gRPC 客户端连接，连接在首次调用时建立
func NewClient(cfg ClientConfig) (*grpc.ClientConn, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithUnaryInterceptor(unaryClientInterceptor(cfg)),
	}

	if cfg.ConnTimeout > 0 {
		opts = append(opts, grpc.WithConnectParams(grpc.ConnectParams{
			Backoff: backoff.Config{
				BaseDelay:  100 * time.Millisecond,
				MaxDelay:   time.Duration(cfg.ConnTimeout) * time.Second,
				Multiplier: 1.6,
				Jitter:     0.2,
			},
			MinConnectTimeout: time.Duration(cfg.ConnTimeout) * time.Second,
		}))
	}

	if cfg.KeepaliveInterval > 0 {
		opts = append(opts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                time.Duration(cfg.KeepaliveInterval) * time.Second,
			Timeout:             10 * time.Second,
			PermitWithoutStream: true,
		}))
	}

	conn, err := grpc.NewClient(cfg.Target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC client for %s: %w", cfg.Target, err)
	}
	return conn, nil
}

// unaryClientInterceptor 请求超时与可重试错误码的重试
func unaryClientInterceptor(cfg ClientConfig) grpc.UnaryClientInterceptor {
	delay := time.Duration(cfg.RetryDelay) * time.Millisecond
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if cfg.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.RequestTimeout)*time.Second)
			defer cancel()
		}

		start := time.Now()
		_, err := retry.Retry(ctx, func() (struct{}, error) {
			err := invoker(ctx, method, req, reply, cc, opts...)
			if err != nil && !shouldRetry(status.Code(err)) {
				return struct{}{}, retry.Permanent(err)
			}
			return struct{}{}, err
		}, retry.WithBackOff(retry.NewConstantBackOff(delay)), retry.WithMaxTries(uint(cfg.MaxRetries+1)))
		if err != nil {
			logger.Error(ctx, "gRPC request failed", "method", method, "duration", time.Since(start), "error", err)
			return err
		}
		logger.Debug(ctx, "gRPC request succeeded", "method", method, "duration", time.Since(start))
		return nil
	}
}

func shouldRetry(code codes.Code) bool {
	switch code {
	case codes.Unavailable, codes.ResourceExhausted:
		return true
	default:
		return false
	}
}
