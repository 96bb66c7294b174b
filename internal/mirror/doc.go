/*
Package mirror implements foldersync's reconciliation engine. It keeps a
replica directory tree identical to a source directory tree, one direction
only.

Every cycle re-walks both trees from scratch, nothing is cached between
cycles. A cycle runs two passes:

 1. The additions pass walks the source tree. Missing replica directories are
    created, missing replica files are created, and replica files whose
    modification time is older than the source are overwritten.
 2. The deletions pass walks the replica tree and removes every directory or
    file that no longer has a counterpart of the same kind in the source tree.
    A removed directory is logged once, its children are not.

By default the passes run concurrently over the same replica tree without any
locking. They touch disjoint paths whenever the source is stable, and a change
made while a cycle is running is picked up by the next cycle. Options.Serial
runs the deletions pass first and the additions pass second instead.

Files that are open elsewhere (see UsageGuard) are skipped for the current
cycle. Per-entry failures are collected in the CycleReport and never stop a
walk.

Every mutation produces one line on the EventLogger:

	<timestamp>: <verb>: <relative path>

where verb is one of Created, Copied, Create Folder, Deleted, Delete Folder.
*/
package mirror
