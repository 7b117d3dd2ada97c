package coordinator

import (
	"time"
)

// Configuration of the training coordinator.
//
// This type is immutable. To build one, unmarshal a
// `CoordinatorConfigMarshall` and seal it with `TrySeal`.
type CoordinatorConfig struct {
	cluster      *ClusterConfig
	database     *DatabaseConfig
	submit       *SubmitConfig
	monitor      *MonitorConfig
	retryGate    *RetryGateConfig
	registration *RegistrationConfig
	promotion    *PromotionConfig
	selector     *SelectorConfig
}

func (c *CoordinatorConfig) Cluster() *ClusterConfig {
	return c.cluster
}

func (c *CoordinatorConfig) Database() *DatabaseConfig {
	return c.database
}

func (c *CoordinatorConfig) Submit() *SubmitConfig {
	return c.submit
}

func (c *CoordinatorConfig) Monitor() *MonitorConfig {
	return c.monitor
}

func (c *CoordinatorConfig) RetryGate() *RetryGateConfig {
	return c.retryGate
}

func (c *CoordinatorConfig) Registration() *RegistrationConfig {
	return c.registration
}

func (c *CoordinatorConfig) Promotion() *PromotionConfig {
	return c.promotion
}

func (c *CoordinatorConfig) Selector() *SelectorConfig {
	return c.selector
}

// Where and how training jobs run.
type ClusterConfig struct {
	namespace      string
	image          string
	serviceAccount string
}

// k8s namespace training jobs are created in.
func (c *ClusterConfig) Namespace() string {
	return c.namespace
}

// trainer container image reference.
func (c *ClusterConfig) Image() string {
	return c.image
}

func (c *ClusterConfig) ServiceAccount() string {
	return c.serviceAccount
}

type DatabaseConfig struct {
	workspace string
	registry  string
}

// Connection string for the workspace store, where freshly trained
// artifacts and approval/promotion bookkeeping live.
func (d *DatabaseConfig) Workspace() string {
	return d.workspace
}

// Connection string for the shared registry promoted artifacts are
// copied into.
func (d *DatabaseConfig) Registry() string {
	return d.registry
}

type SubmitConfig struct {
	maxInFlight   int
	retryInterval time.Duration
	maxRetries    int
}

// How many submissions may be outstanding at once. default = 5
func (s *SubmitConfig) MaxInFlight() int {
	return s.maxInFlight
}

// Base interval between submission attempts; attempt N waits N times
// this. default = 30s
func (s *SubmitConfig) RetryInterval() time.Duration {
	return s.retryInterval
}

// Retries per submission after the first attempt. default = 2
func (s *SubmitConfig) MaxRetries() int {
	return s.maxRetries
}

type MonitorConfig struct {
	initialInterval time.Duration
	maxInterval     time.Duration
	timeout         time.Duration
	noticeInterval  time.Duration
}

// First polling interval. default = 30s
func (m *MonitorConfig) InitialInterval() time.Duration {
	return m.initialInterval
}

// Polling interval ceiling. default = 300s
func (m *MonitorConfig) MaxInterval() time.Duration {
	return m.maxInterval
}

// How long a job may stay non-terminal before it is written off.
// default = 3h
func (m *MonitorConfig) Timeout() time.Duration {
	return m.timeout
}

// How often to emit a still-waiting notice while jobs run. default = 4h
func (m *MonitorConfig) NoticeInterval() time.Duration {
	return m.noticeInterval
}

type RetryGateConfig struct {
	approvalTimeout time.Duration
}

// How long to wait for an operator decision on a retry round.
// default = 4h
func (r *RetryGateConfig) ApprovalTimeout() time.Duration {
	return r.approvalTimeout
}

type RegistrationConfig struct {
	successThreshold float64
}

// Fraction of attempted units that must register for the run to count
// as successful. default = 0.9
func (r *RegistrationConfig) SuccessThreshold() float64 {
	return r.successThreshold
}

type PromotionConfig struct {
	approvalTimeout time.Duration
	visibility      *VisibilityConfig
}

// How long a promotion request may stay undecided. default = 168h
func (p *PromotionConfig) ApprovalTimeout() time.Duration {
	return p.approvalTimeout
}

func (p *PromotionConfig) Visibility() *VisibilityConfig {
	return p.visibility
}

// Polling schedule for confirming a copied artifact is readable from
// the shared registry.
type VisibilityConfig struct {
	initialInterval time.Duration
	maxInterval     time.Duration
	timeout         time.Duration
}

// default = 2s
func (v *VisibilityConfig) InitialInterval() time.Duration {
	return v.initialInterval
}

// default = 30s
func (v *VisibilityConfig) MaxInterval() time.Duration {
	return v.maxInterval
}

// default = 120s
func (v *VisibilityConfig) Timeout() time.Duration {
	return v.timeout
}

type SelectorConfig struct {
	trainAllOnFirstRun bool
}

// Whether an empty workspace store means "train everything". Off by
// default: a wiped store then looks like a fresh install, and silently
// retraining the whole fleet is an expensive way to find that out.
func (s *SelectorConfig) TrainAllOnFirstRun() bool {
	return s.trainAllOnFirstRun
}
