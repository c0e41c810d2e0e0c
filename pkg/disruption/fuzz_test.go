package disruption

import (
	"sort"
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
)

func FuzzLabelSelector(f *testing.F) {
	f.Fuzz(func(t *testing.T, data []byte) {
		fuzzConsumer := fuzz.NewConsumer(data)
		kind, err := fuzzConsumer.GetString()
		if err != nil {
			return
		}
		known := map[string]bool{
			"mgr": true, "mon": true, "osd": true, "mds": true,
			"cephfsplugin": true, "rbdplugin": true,
			"cephfsplugin_provisioner": true, "rbdplugin_provisioner": true,
			"operator": true,
		}
		selector, err := ResourceKind(kind).LabelSelector()
		if known[kind] {
			if err != nil || selector == "" {
				t.Errorf("known kind %q was rejected: %v", kind, err)
			}
			return
		}
		if err == nil {
			t.Errorf("unknown kind %q produced a selector %q instead of an error", kind, selector)
		}
	})
}

func FuzzParsePIDs(f *testing.F) {
	f.Add("101\n205\n")
	f.Add("not-a-pid")
	f.Add("")
	f.Fuzz(func(t *testing.T, out string) {
		pids, err := parsePIDs(out, KindOsd, "node-1")
		if err != nil {
			return
		}
		if len(pids) == 0 {
			t.Error("a nil error must come with at least one pid")
		}
		if !sort.IntsAreSorted(pids) {
			t.Errorf("pids are not sorted: %v", pids)
		}
	})
}
