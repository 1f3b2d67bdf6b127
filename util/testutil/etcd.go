package testutil

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// DefaultEtcdEndpoint is the etcd instance integration tests talk to.
const DefaultEtcdEndpoint = "localhost:2379"

// EtcdTestMutex ensures only one etcd integration test runs at a time across all packages.
//
//	func TestSomethingWithEtcd(t *testing.T) {
//	    testutil.EtcdTestMutex.Lock()
//	    defer testutil.EtcdTestMutex.Unlock()
//	    // ... test code that uses etcd
//	}
var EtcdTestMutex sync.Mutex

// EtcdPrefixForTest returns the key prefix reserved for the current test.
func EtcdPrefixForTest(t testing.TB) string {
	return "/liveroute-test/" + strings.ReplaceAll(t.Name(), "/", "_")
}

// PrepareEtcdPrefix returns a prefix unique to the current test and removes every key
// under it before and after the test. The test is skipped when etcd is not reachable.
func PrepareEtcdPrefix(t testing.TB, endpoint string) string {
	t.Helper()

	prefix := EtcdPrefixForTest(t)

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   []string{endpoint},
		DialTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Skipf("Skipping test: etcd not available: %v", err)
		return ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	_, err = cli.Delete(ctx, prefix, clientv3.WithPrefix())
	cancel()
	if err != nil {
		cli.Close()
		t.Skipf("Skipping test: etcd not available: %v", err)
		return ""
	}

	t.Cleanup(func() {
		defer cli.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := cli.Delete(ctx, prefix, clientv3.WithPrefix()); err != nil {
			t.Logf("Warning: failed to clean up etcd prefix %s: %v", prefix, err)
		}
	})

	return prefix
}
