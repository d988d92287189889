// Package telemetry exports runtime callback activity as Prometheus
// metrics.
//
// The Collector is an ordinary observer: it implements the callback
// interfaces for the categories it measures and is attached to a
// dispatcher like any agent. It holds no locks of its own on event paths;
// Prometheus counters are internally synchronized.
package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kestrelvm/kestrel/internal/callbacks"
	"github.com/kestrelvm/kestrel/internal/vm"
)

// Collector translates runtime events into Prometheus metrics.
type Collector struct {
	threadStarts  prometheus.Counter
	threadDeaths  prometheus.Counter
	liveThreads   prometheus.Gauge
	classDefines  prometheus.Counter
	classLoads    prometheus.Counter
	classPrepares prometheus.Counter
	contentions   prometheus.Counter
	monitorWaits  prometheus.Counter
	parks         prometheus.Counter
	sigQuits      prometheus.Counter
	ddmChunks     *prometheus.CounterVec
	runtimePhase  prometheus.Gauge
}

// NewCollector creates a collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		threadStarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kestrel",
			Subsystem: "runtime",
			Name:      "thread_starts_total",
			Help:      "Total number of threads that attached to the runtime.",
		}),
		threadDeaths: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kestrel",
			Subsystem: "runtime",
			Name:      "thread_deaths_total",
			Help:      "Total number of threads that detached from the runtime.",
		}),
		liveThreads: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kestrel",
			Subsystem: "runtime",
			Name:      "live_threads",
			Help:      "Threads currently attached to the runtime.",
		}),
		classDefines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kestrel",
			Subsystem: "runtime",
			Name:      "class_definitions_total",
			Help:      "Total number of class definition attempts.",
		}),
		classLoads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kestrel",
			Subsystem: "runtime",
			Name:      "class_loads_total",
			Help:      "Total number of classes loaded.",
		}),
		classPrepares: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kestrel",
			Subsystem: "runtime",
			Name:      "class_prepares_total",
			Help:      "Total number of classes linked and prepared.",
		}),
		contentions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kestrel",
			Subsystem: "runtime",
			Name:      "monitor_contentions_total",
			Help:      "Total number of contended monitor acquisitions.",
		}),
		monitorWaits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kestrel",
			Subsystem: "runtime",
			Name:      "monitor_waits_total",
			Help:      "Total number of monitor waits that slept.",
		}),
		parks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kestrel",
			Subsystem: "runtime",
			Name:      "thread_parks_total",
			Help:      "Total number of thread park suspensions.",
		}),
		sigQuits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kestrel",
			Subsystem: "runtime",
			Name:      "sigquit_total",
			Help:      "Total number of SIGQUIT notifications received.",
		}),
		ddmChunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kestrel",
			Subsystem: "runtime",
			Name:      "ddm_chunks_total",
			Help:      "Total number of DDM chunks published, by type code.",
		}, []string{"type"}),
		runtimePhase: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kestrel",
			Subsystem: "runtime",
			Name:      "phase",
			Help:      "Current runtime phase (0=initial-agents 1=start 2=init 3=death).",
		}),
	}

	reg.MustRegister(
		c.threadStarts, c.threadDeaths, c.liveThreads,
		c.classDefines, c.classLoads, c.classPrepares,
		c.contentions, c.monitorWaits, c.parks,
		c.sigQuits, c.ddmChunks, c.runtimePhase,
	)
	return c
}

// Attach registers the collector for every category it measures. Call with
// exclusive registration access, before dispatch traffic starts.
func (c *Collector) Attach(d *callbacks.Dispatcher) {
	d.AddThreadLifecycleCallback(c)
	d.AddClassLoadCallback(c)
	d.AddRuntimePhaseCallback(c)
	d.AddMonitorCallback(c)
	d.AddParkCallback(c)
	d.AddSigQuitCallback(c)
	d.AddDdmCallback(c)
}

// Detach unregisters the collector from every category Attach registered.
func (c *Collector) Detach(d *callbacks.Dispatcher) {
	d.RemoveThreadLifecycleCallback(c)
	d.RemoveClassLoadCallback(c)
	d.RemoveRuntimePhaseCallback(c)
	d.RemoveMonitorCallback(c)
	d.RemoveParkCallback(c)
	d.RemoveSigQuitCallback(c)
	d.RemoveDdmCallback(c)
}

// ThreadStart implements callbacks.ThreadLifecycleCallback.
func (c *Collector) ThreadStart(*vm.Thread) {
	c.threadStarts.Inc()
	c.liveThreads.Inc()
}

// ThreadDeath implements callbacks.ThreadLifecycleCallback.
func (c *Collector) ThreadDeath(*vm.Thread) {
	c.threadDeaths.Inc()
	c.liveThreads.Dec()
}

// BeginDefineClass implements callbacks.ClassLoadCallback.
func (c *Collector) BeginDefineClass() { c.classDefines.Inc() }

// EndDefineClass implements callbacks.ClassLoadCallback.
func (c *Collector) EndDefineClass() {}

// ClassPreDefine implements callbacks.ClassLoadCallback; the collector
// never substitutes artifacts.
func (c *Collector) ClassPreDefine(string, *vm.Class, *vm.ClassLoader,
	*vm.ClassFile, *vm.ClassDef) (*vm.ClassFile, *vm.ClassDef) {
	return nil, nil
}

// ClassLoad implements callbacks.ClassLoadCallback.
func (c *Collector) ClassLoad(*vm.Class) { c.classLoads.Inc() }

// ClassPrepare implements callbacks.ClassLoadCallback.
func (c *Collector) ClassPrepare(*vm.Class, *vm.Class) { c.classPrepares.Inc() }

// NextRuntimePhase implements callbacks.RuntimePhaseCallback.
func (c *Collector) NextRuntimePhase(p callbacks.RuntimePhase) {
	c.runtimePhase.Set(float64(p))
}

// MonitorContendedLocking implements callbacks.MonitorCallback.
func (c *Collector) MonitorContendedLocking(*vm.Monitor) { c.contentions.Inc() }

// MonitorContendedLocked implements callbacks.MonitorCallback.
func (c *Collector) MonitorContendedLocked(*vm.Monitor) {}

// ObjectWaitStart implements callbacks.MonitorCallback.
func (c *Collector) ObjectWaitStart(*vm.Object, int64) {}

// MonitorWaitFinished implements callbacks.MonitorCallback.
func (c *Collector) MonitorWaitFinished(*vm.Monitor, bool) { c.monitorWaits.Inc() }

// ThreadParkStart implements callbacks.ParkCallback.
func (c *Collector) ThreadParkStart(bool, int64) {}

// ThreadParkFinished implements callbacks.ParkCallback.
func (c *Collector) ThreadParkFinished(bool) { c.parks.Inc() }

// SigQuit implements callbacks.SigQuitCallback.
func (c *Collector) SigQuit() { c.sigQuits.Inc() }

// DdmPublishChunk implements callbacks.DdmCallback.
func (c *Collector) DdmPublishChunk(chunkType uint32, data []byte) {
	c.ddmChunks.WithLabelValues(fmt.Sprintf("0x%08x", chunkType)).Inc()
}
