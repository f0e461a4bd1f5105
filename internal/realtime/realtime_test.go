package realtime

import "testing"

func TestNopPublisherIsAPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	p.PublishToUser("u", EventNotification, nil)
	p.PublishToGroup("g", EventNewGroupMessage, nil)
	p.EvictFromGroup("g", "u")
}
