package scheduler

import "fmt"

const schedulerPrefix = "scheduler"

func taskKey(key []byte) []byte {
	return []byte(fmt.Sprintf("%s/task/%x", schedulerPrefix, key))
}

func agendaKey(height uint64) []byte {
	return []byte(fmt.Sprintf("%s/agenda/%d", schedulerPrefix, height))
}
