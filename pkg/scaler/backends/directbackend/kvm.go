package directbackend

import (
	"context"
	"fmt"

	"github.com/thorium-sh/thorium/pkg/scaler"
)

// Hypervisor is the narrow VM-management surface the Kvm backend needs
// (spec §4.10 "maintains a pool of golden snapshots per image; spawn
// renames a golden VM to the worker name, reverts its snapshot,
// attaches a per-worker ISO ... and drives a VNC console to start the
// agent"). A concrete implementation speaks to libvirt; left abstract
// here since no example in the pack wires a libvirt client.
type Hypervisor interface {
	RenameGoldenVM(ctx context.Context, image, newName string) error
	RevertSnapshot(ctx context.Context, vmName, snapshot string) error
	AttachISO(ctx context.Context, vmName, isoPath string) error
	StartViaVNC(ctx context.Context, vmName string) error
}

// KvmBackend composes the desired-worker-row plumbing of Backend with
// the golden-image spawn sequence of spec §4.10's Kvm note.
type KvmBackend struct {
	*Backend
	hv        Hypervisor
	isoDir    string
	goldenTag string
}

func NewKvm(base *Backend, hv Hypervisor, isoDir, goldenTag string) *KvmBackend {
	return &KvmBackend{Backend: base, hv: hv, isoDir: isoDir, goldenTag: goldenTag}
}

// Spawn overrides Backend.Spawn: after writing the desired-worker row,
// it walks the golden-snapshot sequence so the VM is actually booting
// by the time the Reactor observes the row.
func (k *KvmBackend) Spawn(ctx context.Context, spawns []scaler.Spawned) (map[string]error, error) {
	errs, err := k.Backend.Spawn(ctx, spawns)
	if err != nil {
		return nil, err
	}
	for _, s := range spawns {
		if errs[s.Name] != nil {
			continue
		}
		if err := k.bootFromGolden(ctx, s); err != nil {
			errs[s.Name] = err
		}
	}
	return errs, nil
}

func (k *KvmBackend) bootFromGolden(ctx context.Context, s scaler.Spawned) error {
	if err := k.hv.RenameGoldenVM(ctx, k.goldenTag, s.Name); err != nil {
		return err
	}
	if err := k.hv.RevertSnapshot(ctx, s.Name, k.goldenTag); err != nil {
		return err
	}
	iso := fmt.Sprintf("%s/%s.iso", k.isoDir, s.Name)
	if err := k.hv.AttachISO(ctx, s.Name, iso); err != nil {
		return err
	}
	return k.hv.StartViaVNC(ctx, s.Name)
}
