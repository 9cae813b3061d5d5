package service

import "go-shop-admin/internal/event"

func publish(bus event.Bus, e event.Event) {
	if bus == nil {
		return
	}
	bus.Publish(e)
}
