package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestExtensionMechanism(t *testing.T) {
	if testing.Short() {
		t.Skip("builds binaries")
	}
	tempDir := t.TempDir()

	// vme-hello prints the environment it received.
	helloCmdSource := fmt.Sprintf(`
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Printf("%s=%%s\n", os.Getenv("%s"))
	fmt.Printf("%s=%%s\n", os.Getenv("%s"))
	fmt.Printf("args=%%v\n", os.Args[1:])
}
`, EnvConfigFile, EnvConfigFile, EnvVerbose, EnvVerbose)

	helloCmdPath := filepath.Join(tempDir, "vme-hello")
	srcFile := helloCmdPath + ".go"
	if err := os.WriteFile(srcFile, []byte(helloCmdSource), 0644); err != nil {
		t.Fatalf("Failed to write vme-hello source: %v", err)
	}
	cmd := exec.Command("go", "build", "-o", helloCmdPath, srcFile)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("Failed to compile vme-hello: %v", err)
	}

	vmeBinaryPath := filepath.Join(tempDir, "vme")
	cmd = exec.Command("go", "build", "-o", vmeBinaryPath, "../vme")
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		t.Fatalf("Failed to compile vme binary: %v", err)
	}

	configPath := filepath.Join(tempDir, "custom.yaml")
	vmeCmd := exec.Command(vmeBinaryPath, "-config", configPath, "-v", "hello", "world")
	vmeCmd.Env = []string{"PATH=" + tempDir + string(os.PathListSeparator) + os.Getenv("PATH")}

	var stdout, stderr bytes.Buffer
	vmeCmd.Stdout = &stdout
	vmeCmd.Stderr = &stderr
	if err := vmeCmd.Run(); err != nil {
		t.Fatalf("vme command failed: %v\nStdout: %s\nStderr: %s", err, stdout.String(), stderr.String())
	}

	output := stdout.String()
	for _, want := range []string{
		EnvConfigFile + "=" + configPath,
		EnvVerbose + "=true",
		"args=[world]",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected output to contain %q, but got:\n%s", want, output)
		}
	}
}
