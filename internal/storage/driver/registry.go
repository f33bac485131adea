package driver

import (
	"fmt"

	"attachment-platform/pkg/config"
	"attachment-platform/pkg/errors"
)

// Registry 具名驱动注册表：启动期按配置装配，运行期只按名字解析
type Registry struct {
	drivers     map[string]Driver
	defaultName string
}

// NewRegistry 根据配置创建驱动注册表
func NewRegistry(cfgs map[string]config.DriverConfig, defaultName string) (*Registry, error) {
	drivers := make(map[string]Driver, len(cfgs))
	for name, cfg := range cfgs {
		drv, err := newDriver(cfg)
		if err != nil {
			return nil, fmt.Errorf("装配驱动 %s 失败: %w", name, err)
		}
		drivers[name] = drv
	}
	return NewRegistryOf(drivers, defaultName)
}

// NewRegistryOf 以现成驱动实例组建注册表，默认名为空时取名字最小的一项
func NewRegistryOf(drivers map[string]Driver, defaultName string) (*Registry, error) {
	if defaultName == "" {
		for name := range drivers {
			if defaultName == "" || name < defaultName {
				defaultName = name
			}
		}
	}
	if _, ok := drivers[defaultName]; len(drivers) > 0 && !ok {
		return nil, fmt.Errorf("默认驱动 %s 未配置", defaultName)
	}
	return &Registry{drivers: drivers, defaultName: defaultName}, nil
}

// newDriver 按类型创建单个驱动
func newDriver(cfg config.DriverConfig) (Driver, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryDriver(), nil
	case "local":
		return NewLocalDriver(cfg.BaseDir, cfg.PublicURL)
	default:
		return nil, fmt.Errorf("不支持的文件驱动类型: %s", cfg.Type)
	}
}

// Empty 是否没有任何已注册驱动
func (r *Registry) Empty() bool {
	return len(r.drivers) == 0
}

// Default 默认驱动
func (r *Registry) Default() (Driver, error) {
	return r.Get(r.defaultName)
}

// Get 按名字解析驱动
func (r *Registry) Get(name string) (Driver, error) {
	if name == "" {
		name = r.defaultName
	}
	drv, ok := r.drivers[name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNoDriver, "驱动 %s 未注册", name)
	}
	return drv, nil
}

// Close 关闭全部驱动
func (r *Registry) Close() error {
	var firstErr error
	for _, drv := range r.drivers {
		if err := drv.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
