/*
The sync package copies files between the device and its local mirror.

Pull makes the local mirror look like the device's `fs/`:
1) The current mirror is backed up, if there is one.
2) Every directory and file on the device is visited parent first. Directories
   are created locally, and files are downloaded over their local copy.
3) If any step fails, the pull stops and the mirror is restored from the
   backup taken in step 1.

Files that exist locally but not on the device are left alone, so a pull never
loses local work. The backups are never cleaned up.

Push uploads the local mirror to the device, directories before the files
inside them. It stops at the first error and doesn't undo the uploads that
already happened. The device can always be pulled again to see what's there.

Neither direction compares contents or timestamps. Every file is transferred
every time, and the last writer wins.
*/
package sync
