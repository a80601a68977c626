package utils

// SyftBoxArt is printed once at client startup.
const SyftBoxArt = `
   _____ __ _____ _   ____
  / ___// // ___// |_/ __ )____  _  __
  \__ \/ /_\__ \/ /|/ __  / __ \| |/_/
 ___/ /  __/__/ / / / /_/ / /_/ />  <
/____/_/ /____/_/ /_____/\____/_/|_|
`
