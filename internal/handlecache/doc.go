/*
Package handlecache keeps recently viewed photo objects in memory under a
soft byte budget.

GetOrLoad returns a *Handle for a locator (an object key or a public URL).
On a miss the Fetcher loads the bytes; concurrent misses for one locator
share a single fetch. Before a new handle is inserted, resident handles are
released in ascending last-access order until the total fits under
Budget × HighWater. Objects larger than the whole budget are returned
without being cached.

A failed fetch never surfaces as an error: the caller gets a direct handle
(Direct() == true) and should send the client to the locator itself.

Evict and Clear call Handle.Release, which drops the buffer immediately;
later Bytes or Reader calls return ErrReleased.
*/
package handlecache
