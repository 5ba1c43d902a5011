package apps

import (
	"ember/kernel"
	"ember/kernel/sys"
	"ember/user"
)

const (
	powerLen    = 100
	powerMod    = 998244353
	powerIter   = 160000
	powerReport = 10000
)

// power computes p^powerIter mod powerMod through a ring buffer, yielding at
// every progress report.
func power(p uint64) func(env *user.Env) int32 {
	return func(env *user.Env) int32 {
		var s [powerLen]uint64
		cur := 0
		s[cur] = 1
		for i := 1; i <= powerIter; i++ {
			next := (cur + 1) % powerLen
			s[next] = s[cur] * p % powerMod
			cur = next
			if i%powerReport == 0 {
				env.Printf("%s [%d/%d]\n", env.Name(), i, powerIter)
				env.Yield()
			}
		}
		env.Printf("%d^%d = %d(MOD %d)\n", p, powerIter, s[cur], powerMod)
		env.Printf("Test %s OK!\n", env.Name())
		return 0
	}
}

const sleepMs = 100

func sleep(env *user.Env) int32 {
	start := env.GetTimeMs()
	env.Sleep(sleepMs)
	if env.GetTimeMs()-start < sleepMs {
		env.Printf("Test sleep failed!\n")
		return 1
	}
	env.Printf("Test sleep OK!\n")
	return 0
}

// taskInfo checks the kernel's accounting of this app's own syscalls.
func taskInfo(env *user.Env) int32 {
	start := env.GetTimeMs()
	env.Yield()
	env.Sleep(10)
	elapsed := env.GetTimeMs() - start

	ti, ret := env.TaskInfo()
	if ret != 0 {
		env.Printf("task_info returned %d\n", ret)
		return 1
	}
	switch {
	case ti.Status != kernel.Running:
		env.Printf("status = %s, want running\n", ti.Status)
		return 1
	case ti.SyscallTimes[sys.SyscallTaskInfo] != 1:
		env.Printf("task_info count = %d, want 1\n", ti.SyscallTimes[sys.SyscallTaskInfo])
		return 1
	case ti.SyscallTimes[sys.SyscallYield] == 0 || ti.SyscallTimes[sys.SyscallGetTime] < 2:
		env.Printf("yield/get_time not counted\n")
		return 1
	case ti.Time < uint64(elapsed):
		env.Printf("time = %dms, shorter than observed\n", ti.Time)
		return 1
	}
	env.Printf("Test task info OK! (%d ms, %d syscalls)\n", ti.Time, ti.SyscallTimes[sys.SyscallGetTime]+ti.SyscallTimes[sys.SyscallYield]+ti.SyscallTimes[sys.SyscallTaskInfo])
	return 0
}

func hello(env *user.Env) int32 {
	env.Printf("Hello, world from %s!\n", env.Name())
	return 0
}
