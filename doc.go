// Package emberclear implements the connection manager for the
// emberclear encrypted chat client: it establishes a persistent socket
// to a message relay, joins the caller's own channel (and any room
// channels), and exchanges chat payloads with ack/error/timeout
// semantics.
//
// Example:
//
//	opts := emberclear.NewOptions()
//	opts.Identity = myIdentity
//	opts.Processor = myInbox
//
//	client := emberclear.New(opts)
//	defer client.Close()
//
//	if client.CanConnect() {
//	    if err := client.Connect(); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
//	client.OnStateChange(func(state emberclear.State) {
//	    fmt.Println("relay state:", state)
//	})
//
//	reply, err := client.SendAndWait(ctx, peerKeyHex, ciphertext)
//	if err != nil {
//	    log.Println("delivery failed:", err)
//	}
//
// Identity management, payload encryption, toast rendering and
// localization live behind small collaborator interfaces; the package
// owns only the connection and channel lifecycle.
package emberclear
