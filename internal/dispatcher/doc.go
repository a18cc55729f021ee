// Package dispatcher bounds how many fetches run at once.
//
// Both implementations return one Result per Task in task order and capture
// task errors and panics per slot, so one failing fetch never aborts its
// batch. Semaphore enforces a fixed bound with golang.org/x/sync/semaphore.
// MemoryAdaptive shrinks and grows its bound from memory and CPU samples
// taken by a Sampler (gopsutil by default). Its bound is a pool of slots
// shared by every concurrent Dispatch call.
package dispatcher
