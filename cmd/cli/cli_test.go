package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/spf13/cobra"
)

func kv(t *testing.T, out, key string) string {
	t.Helper()
	re := regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(key) + `:\s*(\S+)\s*$`)
	m := re.FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("key %q not found in output: %q", key, out)
	}
	return m[1]
}

func setupWorkdir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()

	cfgPath := filepath.Join(dir, "smartxchain.ini")
	ini := "[Config]\n" +
		"ChainId = test\n" +
		"BlockchainPath = " + filepath.Join(dir, "chain.snapshot") + "\n" +
		"IP = 127.0.0.1\n" +
		"Port = 0\n" +
		"Debug = false\n" +
		"[Miner]\nMinerAddress =\n[Server]\nServerPublicKey =\nServerPrivateKey =\n[Peers]\n"
	if err := os.WriteFile(cfgPath, []byte(ini), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	configFlag = cfgPath
	chainKeyPath = filepath.Join(dir, "node.key")
	contractKeyPath = chainKeyPath
	chainKeyHash = ""
	chainPassphrase = ""
}

func runCmd(t *testing.T, cmd *cobra.Command, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs(nil)
	if err := cmd.RunE(cmd, args); err != nil {
		t.Fatalf("%s: %v", cmd.Use, err)
	}
	return buf.String()
}

func TestChainStatusOnFreshArchive(t *testing.T) {
	setupWorkdir(t)
	out := runCmd(t, chainStatusCmd)
	if got := kv(t, out, "length"); got != "1" {
		t.Fatalf("length = %q, want 1 (genesis only)", got)
	}
}

func TestChainMinePersistsExtraBlock(t *testing.T) {
	setupWorkdir(t)
	runCmd(t, chainMineCmd)
	out := runCmd(t, chainStatusCmd)
	if got := kv(t, out, "length"); got != "2" {
		t.Fatalf("length = %q, want 2 after mining", got)
	}
}

func TestContractDeployAndInvokeRoundTrip(t *testing.T) {
	setupWorkdir(t)

	srcPath := filepath.Join(t.TempDir(), "echo.js")
	source := "function Execute(inputs, state) { return [inputs[0] || \"ok\", state]; }"
	if err := os.WriteFile(srcPath, []byte(source), 0o600); err != nil {
		t.Fatalf("write contract source: %v", err)
	}

	owner := "smartX" + "1111111111111111111111111111111111111111"
	runCmd(t, contractDeployCmd, "Echo", owner, srcPath)

	out := runCmd(t, contractInvokeCmd, "Echo", "hello")
	if got := kv(t, out, "result"); got != "hello" {
		t.Fatalf("result = %q, want hello", got)
	}
}
