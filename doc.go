// Package etwin holds the canonical identity model for the Eternal-Twin
// platform: the users that federate accounts from the legacy game services
// (Dinoparc, Hammerfest, Twinoid) under a single id.
//
// The root package only defines the canonical side: user records, the
// UserStore contract, the authentication context carried by every
// authorization-checked call, and the small ambient contracts (Logger,
// UuidGenerator, PasswordHasher). The remote side lives in the dinoparc,
// hammerfest and twinoid packages, and the link package ties both sides
// together.
package etwin
