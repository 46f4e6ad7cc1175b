package ami

import (
	"crypto/md5"
	"encoding/hex"
)

// LoginMD5 implements the MD5 challenge/response login (spec §4.6):
// it sends a Challenge action, computes
// md5(challenge || secret) in hex, then sends Login with that key.
// The returned Pending resolves with the server's Login response.
func (c *Conn) LoginMD5(username, secret string) *Pending[ActionResult] {
	out := newPending[ActionResult]()

	challenge := c.sendAction("Challenge", Message{"authtype": "MD5"})
	challenge.onSettled(func(res ActionResult, err error) {
		if err != nil {
			out.reject(err)
			return
		}

		sum := md5.Sum([]byte(res.Headers["challenge"] + secret))
		key := hex.EncodeToString(sum[:])

		login := c.sendAction("Login", Message{
			"authtype": "MD5",
			"username": username,
			"key":      key,
		})
		login.onSettled(func(res ActionResult, err error) {
			if err != nil {
				out.reject(err)
				return
			}
			out.resolve(res)
		})
	})

	return out
}

// LoginPlain logs in with a plaintext secret (no challenge round
// trip). Asterisk still accepts this form; it is not excluded by any
// Non-goal, only absent from the distillation this spec was written
// against.
func (c *Conn) LoginPlain(username, secret string) *Pending[ActionResult] {
	return c.sendAction("Login", Message{
		"username": username,
		"secret":   secret,
	})
}
