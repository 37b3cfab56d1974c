package unitfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/core-tools/hsu-oneshot/pkg/errors"
	"github.com/core-tools/hsu-oneshot/pkg/logging"
	"github.com/core-tools/hsu-oneshot/pkg/units"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const deviceInfoUnit = `[Unit]
Description=Collect device information
After=network-online.target

[Service]
Type=oneshot
User=root
ExecStart=./get-device-info.sh
StandardOutput=file:/output/logs/device-info.txt

[Install]
WantedBy=multi-user.target
`

func testLogger() logging.Logger {
	return logging.NewLogger("", logging.LogFuncs{})
}

func TestParse_DeviceInfoUnit(t *testing.T) {
	descriptor, err := Parse("device-info.service", strings.NewReader(deviceInfoUnit), testLogger())
	require.NoError(t, err)

	assert.Equal(t, "device-info.service", descriptor.Name)
	assert.Equal(t, "Collect device information", descriptor.Description)
	assert.Equal(t, units.RunPolicyOnce, descriptor.RunPolicy)
	assert.Equal(t, []string{"network-online.target"}, descriptor.OrderingAfter)
	assert.Equal(t, "root", descriptor.RunAsUser)
	assert.Equal(t, "./get-device-info.sh", descriptor.Command)
	assert.Empty(t, descriptor.Args)
	assert.Equal(t, "/output/logs/device-info.txt", descriptor.Output.Destination)
	assert.False(t, descriptor.Output.Append)
	assert.Equal(t, []string{"multi-user.target"}, descriptor.ActivationTriggers)
}

func TestParse_AppendOutput(t *testing.T) {
	content := `[Service]
Type=oneshot
ExecStart=/usr/bin/true
StandardOutput=append:/var/log/out.txt
`
	descriptor, err := Parse("append.service", strings.NewReader(content), testLogger())
	require.NoError(t, err)

	assert.Equal(t, "/var/log/out.txt", descriptor.Output.Destination)
	assert.True(t, descriptor.Output.Append)
}

func TestParse_ConditionPath(t *testing.T) {
	content := `[Unit]
ConditionPathExists=/etc/device.conf

[Service]
Type=oneshot
ExecStart=/usr/bin/true
StandardOutput=file:/tmp/out.txt
`
	descriptor, err := Parse("cond.service", strings.NewReader(content), testLogger())
	require.NoError(t, err)

	assert.Equal(t, []string{"/etc/device.conf"}, descriptor.ConditionPaths)
	assert.Equal(t, []string{"path:/etc/device.conf"}, descriptor.Dependencies())
}

func TestParse_Errors(t *testing.T) {
	t.Run("non_oneshot_type", func(t *testing.T) {
		content := `[Service]
Type=simple
ExecStart=/usr/bin/true
StandardOutput=file:/tmp/out.txt
`
		_, err := Parse("simple.service", strings.NewReader(content), testLogger())
		require.Error(t, err)
		assert.True(t, errors.IsValidationError(err))
		assert.Contains(t, err.Error(), "only oneshot units are supported")
	})

	t.Run("unsupported_standard_output", func(t *testing.T) {
		content := `[Service]
Type=oneshot
ExecStart=/usr/bin/true
StandardOutput=journal
`
		_, err := Parse("journal.service", strings.NewReader(content), testLogger())
		require.Error(t, err)
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("missing_exec_start", func(t *testing.T) {
		content := `[Service]
Type=oneshot
StandardOutput=file:/tmp/out.txt
`
		_, err := Parse("nocmd.service", strings.NewReader(content), testLogger())
		require.Error(t, err)
	})
}

func TestSplitCommandLine(t *testing.T) {
	tests := []struct {
		name        string
		line        string
		wantCommand string
		wantArgs    []string
		wantErr     bool
	}{
		{"simple", "./get-device-info.sh", "./get-device-info.sh", nil, false},
		{"with_args", "/bin/sh -c ls", "/bin/sh", []string{"-c", "ls"}, false},
		{"double_quoted", `/bin/sh -c "echo device: X1"`, "/bin/sh", []string{"-c", "echo device: X1"}, false},
		{"single_quoted", "/bin/echo 'a b'", "/bin/echo", []string{"a b"}, false},
		{"extra_whitespace", "  /bin/true   now ", "/bin/true", []string{"now"}, false},
		{"unbalanced_quote", `/bin/sh "oops`, "", nil, true},
		{"empty", "   ", "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			command, args, err := splitCommandLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCommand, command)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b-unit.service"), []byte(deviceInfoUnit), 0o644))

	otherUnit := strings.ReplaceAll(deviceInfoUnit, "device-info.txt", "other.txt")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a-unit.service"), []byte(otherUnit), 0o644))

	// Non-unit files are skipped
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a unit"), 0o644))

	descriptors, err := LoadDir(dir, testLogger())
	require.NoError(t, err)
	require.Len(t, descriptors, 2)

	// Sorted by name
	assert.Equal(t, "a-unit.service", descriptors[0].Name)
	assert.Equal(t, "b-unit.service", descriptors[1].Name)
}

func TestLoadDir_MissingDir(t *testing.T) {
	_, err := LoadDir("/nonexistent/units", testLogger())
	require.Error(t, err)
	assert.True(t, errors.IsIOError(err))
}
