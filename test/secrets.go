package test

import (
	"testing"
)

// BackendTest is the set of checks the shared conformance suite runs
// against one backend.
type BackendTest interface {
	TestWriteRead(t *testing.T)
	TestOverwrite(t *testing.T)
	TestKeyIsolation(t *testing.T)
	TestDelete(t *testing.T)
	TestFindStates(t *testing.T)
	TestInsertExisting(t *testing.T)
	TestUpdateMissing(t *testing.T)
	TestLifecycle(t *testing.T)
}

func Run(bt BackendTest, t *testing.T) {
	bt.TestWriteRead(t)
	bt.TestOverwrite(t)
	bt.TestKeyIsolation(t)
	bt.TestDelete(t)
	bt.TestFindStates(t)
	bt.TestInsertExisting(t)
	bt.TestUpdateMissing(t)
	bt.TestLifecycle(t)
}
