package coordinator

import (
	"time"
)

type Marshalled[S any] interface {
	trySeal(string) S
}

// seal marshalled object.
//
// this function CAN CAUSE PANIC if misconfiguration is found.
//
// All types named `pkg/configs/coordinator.XxxMarshall` are `Marshalled[*Xxx]` .
func TrySeal[S any](conf Marshalled[S]) S {
	return conf.trySeal("(root)")
}

// Configuration of the training coordinator.
//
// This type is marshalling value and mutable.
// Consider to use immutable version, `CoordinatorConfig`.
// You can get `CoordinatorConfig` instance with `TrySeal`.
type CoordinatorConfigMarshall struct {
	Cluster      *ClusterConfigMarshall      `yaml:"cluster"`
	Database     *DatabaseConfigMarshall     `yaml:"database"`
	Submit       *SubmitConfigMarshall       `yaml:"submit,omitempty"`
	Monitor      *MonitorConfigMarshall      `yaml:"monitor,omitempty"`
	RetryGate    *RetryGateConfigMarshall    `yaml:"retryGate,omitempty"`
	Registration *RegistrationConfigMarshall `yaml:"registration,omitempty"`
	Promotion    *PromotionConfigMarshall    `yaml:"promotion,omitempty"`
	Selector     *SelectorConfigMarshall     `yaml:"selector,omitempty"`
}

var _ Marshalled[*CoordinatorConfig] = &CoordinatorConfigMarshall{}

func (c *CoordinatorConfigMarshall) trySeal(path string) *CoordinatorConfig {
	return &CoordinatorConfig{
		cluster:      nonnil(c.Cluster, path+".cluster").trySeal(path + ".cluster"),
		database:     nonnil(c.Database, path+".database").trySeal(path + ".database"),
		submit:       orEmpty(c.Submit).trySeal(path + ".submit"),
		monitor:      orEmpty(c.Monitor).trySeal(path + ".monitor"),
		retryGate:    orEmpty(c.RetryGate).trySeal(path + ".retryGate"),
		registration: orEmpty(c.Registration).trySeal(path + ".registration"),
		promotion:    orEmpty(c.Promotion).trySeal(path + ".promotion"),
		selector:     orEmpty(c.Selector).trySeal(path + ".selector"),
	}
}

type ClusterConfigMarshall struct {
	Namespace      string `yaml:"namespace"`
	Image          string `yaml:"image"`
	ServiceAccount string `yaml:"serviceAccount,omitempty"`
}

func (c *ClusterConfigMarshall) trySeal(path string) *ClusterConfig {
	return &ClusterConfig{
		namespace:      required(c.Namespace, path+".namespace"),
		image:          required(c.Image, path+".image"),
		serviceAccount: c.ServiceAccount,
	}
}

type DatabaseConfigMarshall struct {
	Workspace string `yaml:"workspace"`
	Registry  string `yaml:"registry"`
}

func (d *DatabaseConfigMarshall) trySeal(path string) *DatabaseConfig {
	return &DatabaseConfig{
		workspace: required(d.Workspace, path+".workspace"),
		registry:  required(d.Registry, path+".registry"),
	}
}

type SubmitConfigMarshall struct {
	MaxInFlight   int    `yaml:"maxInFlight,omitempty"`
	RetryInterval string `yaml:"retryInterval,omitempty"`
	MaxRetries    *int   `yaml:"maxRetries,omitempty"`
}

func (s *SubmitConfigMarshall) trySeal(path string) *SubmitConfig {
	maxRetries := 2
	if s.MaxRetries != nil {
		maxRetries = *s.MaxRetries
	}
	return &SubmitConfig{
		maxInFlight:   defaulted(s.MaxInFlight, 5),
		retryInterval: duration(s.RetryInterval, 30*time.Second, path+".retryInterval"),
		maxRetries:    maxRetries,
	}
}

type MonitorConfigMarshall struct {
	InitialInterval string `yaml:"initialInterval,omitempty"`
	MaxInterval     string `yaml:"maxInterval,omitempty"`
	Timeout         string `yaml:"timeout,omitempty"`
	NoticeInterval  string `yaml:"noticeInterval,omitempty"`
}

func (m *MonitorConfigMarshall) trySeal(path string) *MonitorConfig {
	return &MonitorConfig{
		initialInterval: duration(m.InitialInterval, 30*time.Second, path+".initialInterval"),
		maxInterval:     duration(m.MaxInterval, 300*time.Second, path+".maxInterval"),
		timeout:         duration(m.Timeout, 3*time.Hour, path+".timeout"),
		noticeInterval:  duration(m.NoticeInterval, 4*time.Hour, path+".noticeInterval"),
	}
}

type RetryGateConfigMarshall struct {
	ApprovalTimeout string `yaml:"approvalTimeout,omitempty"`
}

func (r *RetryGateConfigMarshall) trySeal(path string) *RetryGateConfig {
	return &RetryGateConfig{
		approvalTimeout: duration(r.ApprovalTimeout, 4*time.Hour, path+".approvalTimeout"),
	}
}

type RegistrationConfigMarshall struct {
	SuccessThreshold *float64 `yaml:"successThreshold,omitempty"`
}

func (r *RegistrationConfigMarshall) trySeal(path string) *RegistrationConfig {
	threshold := 0.9
	if r.SuccessThreshold != nil {
		threshold = *r.SuccessThreshold
	}
	if threshold < 0 || 1 < threshold {
		panic(path + ".successThreshold must be in [0, 1]")
	}
	return &RegistrationConfig{successThreshold: threshold}
}

type PromotionConfigMarshall struct {
	ApprovalTimeout string                   `yaml:"approvalTimeout,omitempty"`
	Visibility      *VisibilityConfigMarshall `yaml:"visibility,omitempty"`
}

func (p *PromotionConfigMarshall) trySeal(path string) *PromotionConfig {
	timeout := duration(p.ApprovalTimeout, 7*24*time.Hour, path+".approvalTimeout")
	if timeout < 24*time.Hour || 30*24*time.Hour < timeout {
		panic(path + ".approvalTimeout must be between 24h and 720h")
	}
	return &PromotionConfig{
		approvalTimeout: timeout,
		visibility:      orEmpty(p.Visibility).trySeal(path + ".visibility"),
	}
}

type VisibilityConfigMarshall struct {
	InitialInterval string `yaml:"initialInterval,omitempty"`
	MaxInterval     string `yaml:"maxInterval,omitempty"`
	Timeout         string `yaml:"timeout,omitempty"`
}

func (v *VisibilityConfigMarshall) trySeal(path string) *VisibilityConfig {
	return &VisibilityConfig{
		initialInterval: duration(v.InitialInterval, 2*time.Second, path+".initialInterval"),
		maxInterval:     duration(v.MaxInterval, 30*time.Second, path+".maxInterval"),
		timeout:         duration(v.Timeout, 120*time.Second, path+".timeout"),
	}
}

type SelectorConfigMarshall struct {
	TrainAllOnFirstRun bool `yaml:"trainAllOnFirstRun,omitempty"`
}

func (s *SelectorConfigMarshall) trySeal(string) *SelectorConfig {
	return &SelectorConfig{trainAllOnFirstRun: s.TrainAllOnFirstRun}
}

func nonnil[T any](v *T, path string) *T {
	if v == nil {
		panic(path + " is required")
	}
	return v
}

func orEmpty[T any](v *T) *T {
	if v == nil {
		return new(T)
	}
	return v
}

func required[T comparable](v T, path string) T {
	if v == *new(T) {
		panic(path + " is required")
	}
	return v
}

func defaulted[T comparable](v T, fallback T) T {
	if v == *new(T) {
		return fallback
	}
	return v
}

func duration(v string, fallback time.Duration, path string) time.Duration {
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(path + " can not be parsed as duration: " + err.Error())
	}
	if d <= 0 {
		panic(path + " must be positive")
	}
	return d
}
