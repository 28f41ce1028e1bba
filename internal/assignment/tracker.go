package assignment

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/go-cmp/cmp"
	corev1 "k8s.io/api/core/v1"
	toolscache "k8s.io/client-go/tools/cache"
	ctrlcache "sigs.k8s.io/controller-runtime/pkg/cache"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	identityv1alpha1 "github.com/telekom/pod-identity-operator/api/identity/v1alpha1"
	"github.com/telekom/pod-identity-operator/pkg/metrics"
)

const (
	// Duration between periodic full rebuilds to account for missed events.
	resyncInterval = 5 * time.Minute

	// How long a burst of CR events may settle before the rebuild runs.
	rebuildSettleDelay = 100 * time.Millisecond
)

// Tracker maintains the current snapshot of pod assignments. Readers load
// the snapshot pointer without locking and never observe a partially
// updated entry; writers serialize on a mutex and swap a fresh map in.
type Tracker struct {
	reader    client.Reader
	informers ctrlcache.Informers

	started   atomic.Bool
	rebuildCh chan struct{}

	mutex    sync.Mutex
	revision uint64
	snapshot atomic.Pointer[snapshot]
}

// snapshot is an immutable generation of the assignment map. Entries are
// never mutated after the pointer is published.
type snapshot struct {
	revision uint64
	byIP     map[string]*Assignment
}

// NewTracker creates a Tracker on top of the manager's informer cache. The
// cache decides the pod scope: the node agent configures a spec.nodeName
// field selector, the controller watches the whole cluster.
func NewTracker(c ctrlcache.Cache) *Tracker {
	return &Tracker{
		reader:    c,
		informers: c,

		// Capacity 1: a pending trigger absorbs bursts, a trigger is
		// never lost.
		rebuildCh: make(chan struct{}, 1),
	}
}

// NeedLeaderElection implements LeaderElectionRunnable and indicates that it
// does not need leader election. The snapshot feeds the interceptor and the
// query endpoint on every replica regardless of leadership.
func (t *Tracker) NeedLeaderElection() bool {
	return false
}

// Ready reports whether the first complete rebuild has been published.
// Callers fail closed while this is false.
func (t *Tracker) Ready() bool {
	return t.started.Load() && t.snapshot.Load() != nil
}

// Lookup returns the assignment for a pod IP from the current snapshot.
func (t *Tracker) Lookup(ip string) (*Assignment, bool) {
	if !t.Ready() {
		metrics.AssignmentLookupsTotal.WithLabelValues(metrics.LookupNotReady).Inc()
		return nil, false
	}

	entry, ok := t.snapshot.Load().byIP[ip]
	if !ok {
		metrics.AssignmentLookupsTotal.WithLabelValues(metrics.LookupUnknown).Inc()
		return nil, false
	}
	metrics.AssignmentLookupsTotal.WithLabelValues(lookupResult(entry.State)).Inc()
	return entry, true
}

// Start registers the informer event handlers, publishes the initial
// snapshot and keeps it current until the context is done.
func (t *Tracker) Start(ctx context.Context) error {
	logger := log.FromContext(ctx).WithName("AssignmentTracker")

	if err := t.registerEventHandlers(ctx); err != nil {
		return fmt.Errorf("unable to register event handlers: %w", err)
	}

	if !t.informers.WaitForCacheSync(ctx) {
		return fmt.Errorf("unable to sync informer caches")
	}

	// Initial rebuild
	if err := t.rebuild(ctx); err != nil {
		return err
	}

	// Mark as started only after the first complete rebuild. Runnables start
	// concurrently and the interceptor may call Lookup before the initial
	// snapshot exists; until then it fails closed via Ready().
	t.started.Store(true)
	logger.Info("assignment tracker started", "assignments", len(t.snapshot.Load().byIP))

	// React to CR events with coalesced full rebuilds
	go t.rebuildLoop(ctx)

	// Periodic full rebuild to account for missed events
	go t.periodicResync(ctx)

	return nil
}

func (t *Tracker) registerEventHandlers(ctx context.Context) error {
	podInformer, err := t.informers.GetInformer(ctx, &corev1.Pod{})
	if err != nil {
		return fmt.Errorf("unable to get pod informer: %w", err)
	}
	_, err = podInformer.AddEventHandler(toolscache.ResourceEventHandlerFuncs{
		AddFunc:    func(obj any) { t.syncPod(ctx, obj) },
		UpdateFunc: func(_, obj any) { t.syncPod(ctx, obj) },
		DeleteFunc: func(obj any) { t.removePod(ctx, obj) },
	})
	if err != nil {
		return fmt.Errorf("unable to register pod event handler: %w", err)
	}

	// Any change to the declared identity state invalidates an unknown set
	// of pods, so these always trigger a full rebuild.
	for _, obj := range []client.Object{
		&identityv1alpha1.IdentityBinding{},
		&identityv1alpha1.ManagedIdentity{},
		&identityv1alpha1.IdentityException{},
	} {
		informer, err := t.informers.GetInformer(ctx, obj)
		if err != nil {
			return fmt.Errorf("unable to get informer for %T: %w", obj, err)
		}
		_, err = informer.AddEventHandler(toolscache.ResourceEventHandlerFuncs{
			AddFunc:    func(any) { t.rebuildSoon() },
			UpdateFunc: func(any, any) { t.rebuildSoon() },
			DeleteFunc: func(any) { t.rebuildSoon() },
		})
		if err != nil {
			return fmt.Errorf("unable to register event handler for %T: %w", obj, err)
		}
	}
	return nil
}

// rebuildSoon schedules a full rebuild. A pending trigger swallows further
// ones, the rebuild loop picks the state up fresh when it runs.
func (t *Tracker) rebuildSoon() {
	select {
	case t.rebuildCh <- struct{}{}:
	default:
	}
}

func (t *Tracker) rebuildLoop(ctx context.Context) {
	logger := log.FromContext(ctx).WithName("AssignmentTracker.rebuildLoop")

	for {
		select {
		case <-t.rebuildCh:
			// Let a burst of CR events settle into a single rebuild.
			select {
			case <-time.After(rebuildSettleDelay):
			case <-ctx.Done():
				return
			}
			select {
			case <-t.rebuildCh:
			default:
			}

			if err := t.rebuild(ctx); err != nil {
				logger.Error(err, "failed to rebuild assignment snapshot")
			}
		case <-ctx.Done():
			logger.Info("stopping assignment rebuild loop due to context done")
			return
		}
	}
}

func (t *Tracker) periodicResync(ctx context.Context) {
	logger := log.FromContext(ctx).WithName("AssignmentTracker.periodicResync")
	logger.Info("starting periodic assignment resync", "interval", resyncInterval)

	ticker := time.NewTicker(resyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := t.rebuild(ctx); err != nil {
				logger.Error(err, "failed to rebuild assignment snapshot during resync")
			}
		case <-ctx.Done():
			logger.Info("stopping periodic assignment resync due to context done")
			return
		}
	}
}

// rebuild lists the full cluster state from the informer cache and publishes
// a fresh snapshot.
func (t *Tracker) rebuild(ctx context.Context) error {
	start := time.Now()

	t.mutex.Lock()
	defer t.mutex.Unlock()

	var pods corev1.PodList
	if err := t.reader.List(ctx, &pods); err != nil {
		metrics.SnapshotRebuildErrors.Inc()
		return fmt.Errorf("unable to list pods: %w", err)
	}
	var bindings identityv1alpha1.IdentityBindingList
	if err := t.reader.List(ctx, &bindings); err != nil {
		metrics.SnapshotRebuildErrors.Inc()
		return fmt.Errorf("unable to list identity bindings: %w", err)
	}
	var identities identityv1alpha1.ManagedIdentityList
	if err := t.reader.List(ctx, &identities); err != nil {
		metrics.SnapshotRebuildErrors.Inc()
		return fmt.Errorf("unable to list managed identities: %w", err)
	}
	var exceptions identityv1alpha1.IdentityExceptionList
	if err := t.reader.List(ctx, &exceptions); err != nil {
		metrics.SnapshotRebuildErrors.Inc()
		return fmt.Errorf("unable to list identity exceptions: %w", err)
	}

	byIP := make(map[string]*Assignment, len(pods.Items))
	for i := range pods.Items {
		if entry := Resolve(&pods.Items[i], bindings.Items, identities.Items, exceptions.Items); entry != nil {
			byIP[entry.IP] = entry
		}
	}

	// Periodic resyncs mostly find nothing changed; keep the published
	// generation stable in that case.
	if current := t.snapshot.Load(); current != nil && cmp.Equal(current.byIP, byIP) {
		metrics.SnapshotRebuildDuration.Observe(time.Since(start).Seconds())
		log.FromContext(ctx).V(2).Info("assignment snapshot unchanged",
			"assignments", len(byIP), "revision", t.revision, "duration", time.Since(start))
		return nil
	}
	t.swapLocked(byIP)

	metrics.SnapshotRebuildDuration.Observe(time.Since(start).Seconds())
	log.FromContext(ctx).V(2).Info("assignment snapshot rebuilt",
		"assignments", len(byIP), "revision", t.revision, "duration", time.Since(start))
	return nil
}

// syncPod replaces a single pod's entry in the snapshot. Used for pod events
// so a pod churn does not cost a full rebuild.
func (t *Tracker) syncPod(ctx context.Context, obj any) {
	pod, ok := obj.(*corev1.Pod)
	if !ok {
		return
	}

	entry, err := t.resolvePod(ctx, pod)
	if err != nil {
		log.FromContext(ctx).Error(err, "unable to resolve pod assignment",
			"pod", pod.Name, "namespace", pod.Namespace)
		return
	}
	t.replacePod(podKey(pod), entry)
}

func (t *Tracker) removePod(ctx context.Context, obj any) {
	pod, ok := obj.(*corev1.Pod)
	if !ok {
		tombstone, ok := obj.(toolscache.DeletedFinalStateUnknown)
		if !ok {
			log.FromContext(ctx).V(1).Info("unexpected object in pod delete event", "type", fmt.Sprintf("%T", obj))
			return
		}
		pod, ok = tombstone.Obj.(*corev1.Pod)
		if !ok {
			return
		}
	}
	t.replacePod(podKey(pod), nil)
}

// resolvePod computes a single pod's assignment against the current CR state
// in the informer cache.
func (t *Tracker) resolvePod(ctx context.Context, pod *corev1.Pod) (*Assignment, error) {
	var bindings identityv1alpha1.IdentityBindingList
	if err := t.reader.List(ctx, &bindings, client.InNamespace(pod.Namespace)); err != nil {
		return nil, fmt.Errorf("unable to list identity bindings: %w", err)
	}
	var identities identityv1alpha1.ManagedIdentityList
	if err := t.reader.List(ctx, &identities, client.InNamespace(pod.Namespace)); err != nil {
		return nil, fmt.Errorf("unable to list managed identities: %w", err)
	}
	var exceptions identityv1alpha1.IdentityExceptionList
	if err := t.reader.List(ctx, &exceptions, client.InNamespace(pod.Namespace)); err != nil {
		return nil, fmt.Errorf("unable to list identity exceptions: %w", err)
	}
	return Resolve(pod, bindings.Items, identities.Items, exceptions.Items), nil
}

// replacePod publishes a snapshot with the pod's entry replaced. A nil entry
// removes the pod. Stale entries under an old IP of the same pod are dropped
// during the copy.
func (t *Tracker) replacePod(key string, entry *Assignment) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	current := t.snapshot.Load()
	size := 0
	if current != nil {
		size = len(current.byIP)
	}

	byIP := make(map[string]*Assignment, size+1)
	if current != nil {
		for ip, existing := range current.byIP {
			if existing.Pod == key {
				continue
			}
			byIP[ip] = existing
		}
	}
	if entry != nil {
		byIP[entry.IP] = entry
	}
	t.swapLocked(byIP)
}

// swapLocked publishes the next snapshot generation. Caller holds the mutex.
func (t *Tracker) swapLocked(byIP map[string]*Assignment) {
	t.revision++
	t.snapshot.Store(&snapshot{
		revision: t.revision,
		byIP:     byIP,
	})

	var bound, ambiguous, exempt float64
	for _, entry := range byIP {
		switch entry.State {
		case StateBound:
			bound++
		case StateAmbiguous:
			ambiguous++
		case StateExempt:
			exempt++
		}
	}
	metrics.AssignmentsTracked.WithLabelValues(metrics.StateBound).Set(bound)
	metrics.AssignmentsTracked.WithLabelValues(metrics.StateConflict).Set(ambiguous)
	metrics.AssignmentsTracked.WithLabelValues(metrics.StateExempt).Set(exempt)
}

func lookupResult(state State) string {
	switch state {
	case StateBound:
		return metrics.LookupBound
	case StateAmbiguous:
		return metrics.LookupConflict
	case StateExempt:
		return metrics.LookupExempt
	case StateUnbound:
		return metrics.LookupUnbound
	default:
		return metrics.LookupUnknown
	}
}

func podKey(pod *corev1.Pod) string {
	return pod.Namespace + "/" + pod.Name
}
