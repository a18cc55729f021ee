// Package batch crawls several start URLs concurrently.
//
// Every start URL gets its own strategy run, and so its own visited set and
// frontier, while the rate limiter, proxy rotator and dispatcher handed to
// the strategy factory are shared by all runs in the batch.
package batch
