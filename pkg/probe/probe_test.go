package probe

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clawue884/sidra-monitoring/pkg/errors"
	"github.com/Clawue884/sidra-monitoring/pkg/inventory"
	"github.com/Clawue884/sidra-monitoring/pkg/remote"
)

// fakeRunner returns canned results per command prefix.
type fakeRunner struct {
	results map[string]remote.Result
	err     error
}

func (f *fakeRunner) Run(ctx context.Context, addr, cmd string) (remote.Result, error) {
	if f.err != nil {
		return remote.Result{}, f.err
	}
	for prefix, res := range f.results {
		if len(cmd) >= len(prefix) && cmd[:len(prefix)] == prefix {
			return res, nil
		}
	}
	return remote.Result{ExitCode: 127, Stderr: "command not found"}, nil
}

type panicProbe struct{}

func (p *panicProbe) Kind() inventory.ProbeKind { return inventory.ProbeStorage }
func (p *panicProbe) Run(ctx context.Context, host inventory.Identity, cfg Config) inventory.ProbeResult {
	panic("boom")
}

func TestExecute_PanicIsolation(t *testing.T) {
	res := Execute(context.Background(), &panicProbe{}, inventory.Identity{Addr: "10.0.0.1"}, Config{})

	assert.Equal(t, inventory.ProbeStorage, res.Kind)
	assert.Equal(t, inventory.StatusError, res.Status)
	assert.Contains(t, res.Detail, "probe panic")
	assert.False(t, res.CapturedAt.IsZero())
}

func TestExecute_SetsDuration(t *testing.T) {
	runner := &fakeRunner{results: map[string]remote.Result{
		"uname": {Stdout: "Linux 6.8.0\n"},
	}}
	p := &SSHFactsProbe{Runner: runner}

	res := Execute(context.Background(), p, inventory.Identity{Addr: "10.0.0.1"}, Config{})
	assert.Equal(t, inventory.StatusOK, res.Status)
	assert.Greater(t, res.Duration, time.Duration(0))
}

func TestRegistry_CoversAllKinds(t *testing.T) {
	reg := Registry(NewDefaultFactory(&fakeRunner{}))

	require.Len(t, reg, len(inventory.Kinds()))
	for _, kind := range inventory.Kinds() {
		p, ok := reg[kind]
		require.True(t, ok, "missing probe for kind %s", kind)
		assert.Equal(t, kind, p.Kind())
	}
}

func TestShellDependent(t *testing.T) {
	assert.True(t, ShellDependent(inventory.ProbeContainers))
	assert.True(t, ShellDependent(inventory.ProbeDatabase))
	assert.True(t, ShellDependent(inventory.ProbeStorage))
	assert.False(t, ShellDependent(inventory.ProbePorts))
	assert.False(t, ShellDependent(inventory.ProbeSSHFacts))
	assert.False(t, ShellDependent(inventory.ProbeReachability))
}

func TestReachabilityProbe_OpenPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	p := &ReachabilityProbe{}
	cfg := Config{GatePorts: []int{port}, ConnectTimeout: time.Second, Timeout: 5 * time.Second}

	res := p.Run(context.Background(), inventory.Identity{Addr: "127.0.0.1"}, cfg)
	assert.Equal(t, inventory.StatusOK, res.Status)
	assert.Equal(t, port, res.Payload["via_port"])
}

func TestReachabilityProbe_Unreachable(t *testing.T) {
	p := &ReachabilityProbe{}
	cfg := Config{GatePorts: []int{9}, ConnectTimeout: 200 * time.Millisecond, Timeout: time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// TEST-NET-1, packets go nowhere.
	res := p.Run(ctx, inventory.Identity{Addr: "192.0.2.1"}, cfg)
	assert.Contains(t, []inventory.ProbeStatus{inventory.StatusUnreachable, inventory.StatusTimeout}, res.Status)
}

func TestPortsProbe_FindsListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	p := &PortsProbe{}
	cfg := Config{Ports: []int{port}, ConnectTimeout: time.Second, Timeout: 5 * time.Second}

	res := p.Run(context.Background(), inventory.Identity{Addr: "127.0.0.1"}, cfg)
	require.Equal(t, inventory.StatusOK, res.Status)

	open, ok := res.Payload["open"].([]int)
	require.True(t, ok)
	assert.Equal(t, []int{port}, open)

	services := res.Payload["services"].(map[string]any)
	assert.Equal(t, "unknown", services[strconv.Itoa(port)])
}

func TestServiceName(t *testing.T) {
	assert.Equal(t, "ssh", ServiceName(22))
	assert.Equal(t, "postgresql", ServiceName(5432))
	assert.Equal(t, "unknown", ServiceName(31337))
}

func TestSSHFactsProbe_DegradedPayload(t *testing.T) {
	// Only uname and nproc answer; every other sub-step fails.
	runner := &fakeRunner{results: map[string]remote.Result{
		"uname": {Stdout: "Linux 6.8.0-41-generic\n"},
		"nproc": {Stdout: "16\n"},
	}}
	p := &SSHFactsProbe{Runner: runner}

	res := p.Run(context.Background(), inventory.Identity{Addr: "10.0.0.5"}, Config{})
	require.Equal(t, inventory.StatusOK, res.Status)
	assert.Equal(t, "Linux 6.8.0-41-generic", res.Payload["kernel"])
	assert.Equal(t, 16, res.Payload["cpu_count"])
	assert.NotContains(t, res.Payload, "os")
	assert.NotContains(t, res.Payload, "hostname")
}

func TestSSHFactsProbe_AuthFailed(t *testing.T) {
	runner := &fakeRunner{err: errors.New(errors.ErrCodeAuthFailed, "ssh authentication failed")}
	p := &SSHFactsProbe{Runner: runner}

	res := p.Run(context.Background(), inventory.Identity{Addr: "10.0.0.5"}, Config{})
	assert.Equal(t, inventory.StatusAuthFailed, res.Status)
	assert.Nil(t, res.Payload)
}

func TestSSHFactsProbe_OSRelease(t *testing.T) {
	runner := &fakeRunner{results: map[string]remote.Result{
		"uname": {Stdout: "Linux 6.8.0\n"},
		"cat /etc/os-release": {Stdout: "NAME=\"Ubuntu\"\nPRETTY_NAME=\"Ubuntu 24.04 LTS\"\nID=ubuntu\n"},
	}}
	p := &SSHFactsProbe{Runner: runner}

	res := p.Run(context.Background(), inventory.Identity{Addr: "10.0.0.5"}, Config{})
	assert.Equal(t, "Ubuntu 24.04 LTS", res.Payload["os"])
	assert.Equal(t, "ubuntu", res.Payload["os_family"])
}

func TestContainersProbe_DockerAbsent(t *testing.T) {
	runner := &fakeRunner{} // every command returns exit 127
	p := &ContainersProbe{Runner: runner}

	res := p.Run(context.Background(), inventory.Identity{Addr: "10.0.0.5"}, Config{})
	assert.Equal(t, inventory.StatusOK, res.Status)
	assert.Equal(t, "docker not present", res.Detail)
	assert.NotContains(t, res.Payload, "containers")
}

func TestContainersProbe_ParsesOutput(t *testing.T) {
	runner := &fakeRunner{results: map[string]remote.Result{
		"docker ps": {Stdout: "web|nginx:1.27|Up 3 days (healthy)\ncache|redis|Up 2 hours (unhealthy)\n"},
	}}
	p := &ContainersProbe{Runner: runner}

	res := p.Run(context.Background(), inventory.Identity{Addr: "10.0.0.5"}, Config{})
	require.Equal(t, inventory.StatusOK, res.Status)
	assert.Equal(t, 2, res.Payload["count"])

	unhealthy := res.Payload["unhealthy"].([]string)
	assert.Equal(t, []string{"cache"}, unhealthy)

	containers := res.Payload["containers"].([]map[string]any)
	assert.Equal(t, "docker.io/library/nginx:1.27", containers[0]["image"])
	assert.Equal(t, "docker.io/library/redis", containers[1]["image"])
}

func TestNormalizeImage_Unparseable(t *testing.T) {
	assert.Equal(t, "NOT A REF!", normalizeImage("NOT A REF!"))
}

func TestStorageProbe_ParsesDF(t *testing.T) {
	dfOut := `/dev/sda1 102400000 51200000 51200000 50% /
tmpfs 8192000 0 8192000 0% /dev/shm
/dev/nvme0n1p1 512000000 25600000 486400000 5% /data
`
	runner := &fakeRunner{results: map[string]remote.Result{
		"df":    {Stdout: dfOut},
		"lsblk": {Stdout: "sda disk 100G\nsda1 part 100G\nnvme0n1 disk 500G\n"},
	}}
	p := &StorageProbe{Runner: runner}

	res := p.Run(context.Background(), inventory.Identity{Addr: "10.0.0.5"}, Config{})
	require.Equal(t, inventory.StatusOK, res.Status)
	assert.Equal(t, 2, res.Payload["count"])

	mounts := res.Payload["mounts"].([]map[string]any)
	assert.Equal(t, "/", mounts[0]["mountpoint"])
	assert.Equal(t, 50.0, mounts[0]["use_pct"])

	devices := res.Payload["block_devices"].([]map[string]any)
	require.Len(t, devices, 2)
	assert.Equal(t, "sda", devices[0]["name"])
}

func TestDatabaseProbe_NoEngines(t *testing.T) {
	p := &DatabaseProbe{Runner: &fakeRunner{}}
	cfg := Config{ConnectTimeout: 100 * time.Millisecond, Timeout: 2 * time.Second}

	// 127.0.0.1 with nothing listening on the db ports
	res := p.Run(context.Background(), inventory.Identity{Addr: "127.0.0.1"}, cfg)
	assert.Equal(t, inventory.StatusOK, res.Status)
	assert.NotContains(t, res.Payload, "engines")
}

func TestStatusFromError(t *testing.T) {
	tests := []struct {
		code errors.ErrorCode
		want inventory.ProbeStatus
	}{
		{errors.ErrCodeAuthFailed, inventory.StatusAuthFailed},
		{errors.ErrCodeTimeout, inventory.StatusTimeout},
		{errors.ErrCodeUnreachable, inventory.StatusUnreachable},
		{errors.ErrCodeInternal, inventory.StatusError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFromError(errors.New(tt.code, "x")))
	}
}
