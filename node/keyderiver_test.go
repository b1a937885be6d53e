package node

import (
	"path/filepath"
	"testing"
)

func TestEd25519KeyDeriverCreatesThenReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.key")

	d := Ed25519KeyDeriver{}
	addr1, priv1, err := d.LoadOrCreate(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !addr1.Valid() {
		t.Fatalf("derived address %q is not valid", addr1)
	}

	addr2, priv2, err := d.LoadOrCreate(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if addr1 != addr2 {
		t.Fatalf("address changed across reload: %s vs %s", addr1, addr2)
	}
	if string(priv1) != string(priv2) {
		t.Fatal("private key changed across reload")
	}
}
