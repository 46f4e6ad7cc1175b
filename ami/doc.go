/*
Package ami implements a client for the Asterisk Manager Interface
(AMI), the line-oriented TCP protocol Asterisk exposes for remote
control: logging in, issuing actions, awaiting their responses, and
observing the event stream that describes the lifecycle of calls.

It does not open sockets itself. A Conn is fed raw bytes through
BytesReceived and writes outbound frames through a Transport
supplied at construction; see the transport package for a ready-made
TCP implementation.

Logging in and sending a ping:

	conn := ami.NewConn(tr, ami.WithLogger(log))
	if _, err := conn.LoginMD5("admin", "secret").Wait(context.Background()); err != nil {
		// handle login failure
	}
	conn.SendAction("Ping", nil)

Watching the channel registry:

	conn.OnNewChannel(func(name string, ch *ami.Channel) {
		ch.Handlers.HungUp = func(cause int, text string) {
			fmt.Println(name, "hung up:", text)
		}
	})

All actions are promise-like: SendAction and its friends return a
*Pending that resolves or rejects once the matching response arrives.
For Originate, OriginateResult gives a second Pending that settles on
the OriginateResponse event. The only blocking call in this package is
Pending.Wait, which callers invoke explicitly; callers choose how to
wait.
*/
package ami
