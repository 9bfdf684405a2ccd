// Package surehub is a client for the Sure Petcare cloud API.
//
// A Session owns the account credentials and the bearer token. It logs in
// lazily, coalesces concurrent logins into one request and retries a call
// once when the server reports that the token could not be verified.
//
//	s := surehub.NewSession(surehub.Credentials{
//	    Email:    "me@example.com",
//	    Password: "secret",
//	})
//	c := surehub.NewClient(s)
//	households, err := c.Households(ctx)
//
// Resources (households, devices, pets) are snapshots decoded from the API
// response; commands such as Pet.SetPosition do not update them.
//
// Timelines are read with a Watcher, which remembers the newest entry it has
// seen and returns only newer entries on each Poll, oldest first:
//
//	w, err := household.Timeline()
//	for range time.Tick(time.Minute) {
//	    entries, err := w.Poll(ctx)
//	    ...
//	}
package surehub
